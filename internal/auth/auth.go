package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/booknest/booknest-api/internal/identity"
	"github.com/booknest/booknest-api/internal/types"
	"github.com/booknest/booknest-api/pkg/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	Token      string      `json:"token"`
	Expiration time.Time   `json:"expiration"`
	User       *types.User `json:"user"`
}

// Service handles registration, login and token validation
type Service struct {
	jwtSecret []byte
	users     *identity.Database
}

// NewService creates a new authentication service backed by the identity store
func NewService(jwtSecret string, users *identity.Database) *Service {
	return &Service{
		jwtSecret: []byte(jwtSecret),
		users:     users,
	}
}

// Register creates a new user with a bcrypt-hashed password and returns a
// signed token for the fresh account
func (s *Service) Register(name, email, password string) (*TokenResponse, error) {
	if existing, err := s.users.GetUserByEmail(email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &types.User{
		UserID:       "USR_" + uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.users.CreateUser(user); err != nil {
		return nil, err
	}

	return s.issueToken(user)
}

// Login verifies the credentials and returns a signed token
func (s *Service) Login(email, password string) (*TokenResponse, error) {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(user)
}

// issueToken signs a 24-hour token carrying the user ID
func (s *Service) issueToken(user *types.User) (*TokenResponse, error) {
	expiration := time.Now().Add(24 * time.Hour)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID: user.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
		User:       user,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
// Verifies token signature and expiration
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
	users   *identity.Database
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service, users *identity.Database) *GinHandlers {
	return &GinHandlers{
		service: service,
		users:   users,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterHandler handles POST requests to create a new account
func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		token, err := h.service.Register(req.Name, req.Email, req.Password)
		if errors.Is(err, ErrEmailTaken) {
			response.BadRequest(c, err.Error())
			return
		}
		if err == nil {
			setTokenCookie(c, token.Token)
		}
		response.Handle(c, token, err)
	}
}

// LoginHandler handles POST requests to exchange credentials for a token.
// The token is also set as a cookie for browser clients.
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		token, err := h.service.Login(req.Email, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		if err == nil {
			setTokenCookie(c, token.Token)
			response.OK(c, token)
			return
		}
		response.Handle(c, token, err)
	}
}

// MeHandler returns the authenticated user's record
func (h *GinHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authentication")
			return
		}

		user, err := h.users.GetUserByID(userID)
		if err != nil {
			response.NotFound(c, "User not found")
			return
		}
		response.OK(c, user)
	}
}

func setTokenCookie(c *gin.Context, token string) {
	c.SetCookie("token", token, int((24 * time.Hour).Seconds()), "/", "", false, true)
}
