package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ErrorBody is the wire shape for every failed request.
type ErrorBody struct {
	Error string `json:"error"`
}

// Handle processes the error and returns the appropriate response.
// Unknown errors are logged and answered with a generic message so internal
// details never reach the client.
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled request error")
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response. POST requests answer 201.
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}
	c.JSON(status, data)
}

// OK sends a 200 response regardless of method.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ErrorBody{Error: message})
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: message})
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, ErrorBody{Error: message})
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, ErrorBody{Error: message})
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, ErrorBody{Error: message})
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: message})
}
