package catalog

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/booknest/booknest-api/internal/types"
	"github.com/booknest/booknest-api/pkg/response"
)

const (
	VerificationPending  = "PENDING"
	VerificationVerified = "VERIFIED"
	VerificationRejected = "REJECTED"
)

// Service handles catalog operations: listing books for sale and resolving
// them during a purchase.
type Service struct {
	db *Database
}

// NewService creates a new catalog service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateBook lists a new book for the given seller. New listings start
// unverified; admin review flips the status out of band.
func (s *Service) CreateBook(book *types.Book, sellerID string) error {
	book.BookID = "BK_" + uuid.New().String()
	book.SellerID = sellerID
	book.VerificationStatus = VerificationPending
	book.IsAvailable = true
	book.CreatedAt = time.Now()
	book.UpdatedAt = time.Now()

	return s.db.CreateBook(book)
}

// GetBook retrieves a book by its ID
func (s *Service) GetBook(bookID string) (*types.Book, error) {
	return s.db.GetBook(bookID)
}

// ListAvailable returns available books, newest first
func (s *Service) ListAvailable() ([]types.Book, error) {
	return s.db.ListAvailable()
}

// GinHandlers contains HTTP handlers for catalog endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for catalog endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type createBookRequest struct {
	Title       string  `json:"title" binding:"required"`
	Author      string  `json:"author" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Price       float64 `json:"price" binding:"required,gte=0"`
	Category    string  `json:"category" binding:"required"`
	PDFFile     string  `json:"pdfFile"`
}

// CreateBookHandler handles POST requests to list a new book
func (h *GinHandlers) CreateBookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.GetString("userID")
		if sellerID == "" {
			response.Unauthorized(c, "Missing authentication")
			return
		}

		var req createBookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		book := &types.Book{
			Title:       req.Title,
			Author:      req.Author,
			Description: req.Description,
			Price:       req.Price,
			Category:    req.Category,
			PDFFile:     req.PDFFile,
		}

		if err := h.service.CreateBook(book, sellerID); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, book)
	}
}

// GetBookHandler handles GET requests for a single book
func (h *GinHandlers) GetBookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bookID := c.Param("bookId")
		if bookID == "" {
			response.BadRequest(c, "Book ID is required")
			return
		}

		book, err := h.service.GetBook(bookID)
		if err != nil {
			response.NotFound(c, "Book not found")
			return
		}
		response.OK(c, book)
	}
}

// ListBooksHandler handles GET requests for the storefront listing
func (h *GinHandlers) ListBooksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		books, err := h.service.ListAvailable()
		response.Handle(c, books, err)
	}
}
