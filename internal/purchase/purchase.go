package purchase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/booknest/booknest-api/internal/catalog"
	"github.com/booknest/booknest-api/internal/delivery"
	"github.com/booknest/booknest-api/internal/gateway"
	"github.com/booknest/booknest-api/internal/identity"
	"github.com/booknest/booknest-api/internal/types"
	"github.com/booknest/booknest-api/pkg/middleware"
	"github.com/booknest/booknest-api/pkg/response"
)

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrBookUnavailable  = errors.New("book is not available for purchase")
	ErrSelfPurchase     = errors.New("you cannot buy your own book")
	ErrAlreadyOwned     = errors.New("you already own this book")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrNotCompleted     = errors.New("purchase not completed")
)

// Gateway is the slice of the payment gateway adapter the orchestrator needs.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// Deliverer sends the purchased artifact to the buyer.
type Deliverer interface {
	Send(req delivery.Request) (delivery.Outcome, error)
}

// Service is the purchase orchestrator. It owns the Purchase lifecycle and is
// the only writer of delivery-tracking fields.
type Service struct {
	db       *Database
	users    *identity.Database
	books    *catalog.Database
	gateway  Gateway
	delivery Deliverer
}

// NewService creates the orchestrator with its collaborators injected. The
// gateway client is constructed once at startup, never lazily.
func NewService(gormDB *gorm.DB, gw Gateway, dlv Deliverer) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		users:    identity.NewDatabase(gormDB),
		books:    catalog.NewDatabase(gormDB),
		gateway:  gw,
		delivery: dlv,
	}
}

// GetDB exposes the purchase store for the expiry processor.
func (s *Service) GetDB() *Database {
	return s.db
}

// checkEligibility enforces the shared purchase preconditions: the book
// exists and is available, the buyer is not the seller, and no completed
// purchase exists yet for this (buyer, book) pair.
func (s *Service) checkEligibility(buyerID, bookID string) (*types.Book, error) {
	book, err := s.books.GetBook(bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}

	if !book.IsAvailable {
		return nil, ErrBookUnavailable
	}
	if book.SellerID == buyerID {
		return nil, ErrSelfPurchase
	}

	owned, err := s.db.HasCompletedPurchase(buyerID, bookID)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, ErrAlreadyOwned
	}

	return book, nil
}

// InitiateExternalOrder creates a gateway order for the book price and a
// pending purchase row correlated by the gateway order id.
func (s *Service) InitiateExternalOrder(ctx context.Context, buyerID, bookID string) (*OrderResponse, error) {
	logger := log.With().
		Str("service", "purchase").
		Str("buyer_id", buyerID).
		Str("book_id", bookID).
		Logger()

	book, err := s.checkEligibility(buyerID, bookID)
	if err != nil {
		return nil, err
	}

	// The gateway bills in minor currency units; the API keeps major units.
	amountMinor := int64(math.Round(book.Price * 100))

	orderID, err := s.gateway.CreateOrder(ctx, amountMinor, "INR", gateway.NewReceiptID(), map[string]string{
		"bookId":   bookID,
		"buyerId":  buyerID,
		"sellerId": book.SellerID,
	})
	if err != nil {
		return nil, err
	}

	purchase := &Purchase{
		PurchaseID:      "PUR_" + uuid.New().String(),
		BuyerID:         buyerID,
		BookID:          bookID,
		SellerID:        book.SellerID,
		Amount:          book.Price,
		PaymentMethod:   MethodRazorpay,
		RazorpayOrderID: orderID,
		Status:          StatusPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := s.db.CreatePurchase(purchase); err != nil {
		return nil, err
	}

	logger.Info().
		Str("purchase_id", purchase.PurchaseID).
		Str("gateway_order_id", orderID).
		Float64("amount", book.Price).
		Msg("created pending gateway purchase")

	return &OrderResponse{
		OrderID:    orderID,
		Amount:     book.Price,
		PurchaseID: purchase.PurchaseID,
		Book: BookSummary{
			ID:     book.BookID,
			Title:  book.Title,
			Author: book.Author,
		},
	}, nil
}

// VerifyExternalPayment checks the gateway signature and settles the pending
// purchase. The settlement is idempotent: a second call with the same valid
// payment id is rejected and credits nothing.
func (s *Service) VerifyExternalPayment(orderID, paymentID, signature string) (*Purchase, error) {
	logger := log.With().
		Str("service", "purchase").
		Str("gateway_order_id", orderID).
		Str("gateway_payment_id", paymentID).
		Logger()

	if !s.gateway.VerifySignature(orderID, paymentID, signature) {
		logger.Warn().Msg("payment signature mismatch")
		return nil, ErrInvalidSignature
	}

	purchase, err := s.db.GetPurchaseByOrderID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}

	if purchase.Status == StatusCompleted {
		return nil, ErrAlreadySettled
	}

	if err := s.db.SettleVerifiedPayment(purchase, paymentID, signature); err != nil {
		return nil, err
	}

	logger.Info().
		Str("purchase_id", purchase.PurchaseID).
		Float64("amount", purchase.Amount).
		Msg("payment verified and settled")
	middleware.RecordPurchaseSettled(MethodRazorpay)

	// Settlement is committed; a delivery failure is recorded and retried
	// by the buyer, not surfaced as a request failure.
	s.attemptDelivery(purchase.PurchaseID)

	return s.db.GetPurchase(purchase.PurchaseID)
}

// BuyWithWallet settles a purchase synchronously from the buyer's wallet
// balance. All writes happen in one transaction; insufficient balance leaves
// every record untouched.
func (s *Service) BuyWithWallet(buyerID, bookID string) (*Purchase, error) {
	logger := log.With().
		Str("service", "purchase").
		Str("buyer_id", buyerID).
		Str("book_id", bookID).
		Logger()

	book, err := s.checkEligibility(buyerID, bookID)
	if err != nil {
		return nil, err
	}

	purchase := &Purchase{
		PurchaseID:    "PUR_" + uuid.New().String(),
		BuyerID:       buyerID,
		BookID:        bookID,
		SellerID:      book.SellerID,
		Amount:        book.Price,
		PaymentMethod: MethodWallet,
		Status:        StatusCompleted,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := s.db.SettleWallet(purchase); err != nil {
		return nil, err
	}

	logger.Info().
		Str("purchase_id", purchase.PurchaseID).
		Float64("amount", purchase.Amount).
		Msg("wallet purchase settled")
	middleware.RecordPurchaseSettled(MethodWallet)

	s.attemptDelivery(purchase.PurchaseID)

	return s.db.GetPurchase(purchase.PurchaseID)
}

// ResendDelivery re-sends the artifact for a completed purchase. Buyer only.
func (s *Service) ResendDelivery(purchaseID, requesterID string) error {
	purchase, err := s.db.GetPurchase(purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPurchaseNotFound
		}
		return err
	}

	if purchase.BuyerID != requesterID {
		return ErrNotAuthorized
	}
	if purchase.Status != StatusCompleted {
		return ErrNotCompleted
	}

	return s.attemptDelivery(purchaseID)
}

// GetPurchase returns a purchase to its buyer or seller.
func (s *Service) GetPurchase(purchaseID, requesterID string) (*Purchase, error) {
	purchase, err := s.db.GetPurchase(purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}

	if purchase.BuyerID != requesterID && purchase.SellerID != requesterID {
		return nil, ErrNotAuthorized
	}

	return purchase, nil
}

// attemptDelivery resolves the buyer and book, invokes the delivery service
// and records the outcome with a targeted atomic update. Every attempt bumps
// the counter, success or not.
func (s *Service) attemptDelivery(purchaseID string) error {
	logger := log.With().
		Str("service", "purchase").
		Str("purchase_id", purchaseID).
		Logger()

	purchase, err := s.db.GetPurchase(purchaseID)
	if err != nil {
		return err
	}

	buyer, err := s.users.GetUserByID(purchase.BuyerID)
	if err != nil {
		return err
	}
	book, err := s.books.GetBook(purchase.BookID)
	if err != nil {
		return err
	}

	outcome, sendErr := s.delivery.Send(delivery.Request{
		PurchaseID:   purchase.PurchaseID,
		BuyerName:    buyer.Name,
		BuyerEmail:   buyer.Email,
		BookTitle:    book.Title,
		BookAuthor:   book.Author,
		Amount:       purchase.Amount,
		PurchaseDate: purchase.CreatedAt,
		ArtifactPath: book.PDFFile,
	})

	if err := s.db.RecordDeliveryAttempt(purchaseID, outcome.Delivered); err != nil {
		logger.Error().Err(err).Msg("failed to record delivery attempt")
		return err
	}

	if sendErr != nil {
		logger.Error().Err(sendErr).Msg("artifact delivery failed")
		return sendErr
	}
	return nil
}

// GinHandlers contains HTTP handlers for purchase endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for purchase endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type createOrderRequest struct {
	BookID string `json:"bookId" binding:"required"`
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpayOrderId" binding:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" binding:"required"`
	RazorpaySignature string `json:"razorpaySignature" binding:"required"`
}

// CreateOrderHandler handles POST requests to start a gateway checkout
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.InitiateExternalOrder(c.Request.Context(), c.GetString("userID"), req.BookID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, order)
	}
}

// VerifyPaymentHandler handles POST requests with the checkout result
// forwarded verbatim from the gateway's hosted flow
func (h *GinHandlers) VerifyPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		purchase, err := h.service.VerifyExternalPayment(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
		if err != nil {
			respondError(c, err)
			return
		}
		response.OK(c, gin.H{
			"message":  "Payment verified successfully",
			"purchase": purchase,
		})
	}
}

// BuyWithWalletHandler handles POST requests for synchronous wallet purchases
func (h *GinHandlers) BuyWithWalletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		purchase, err := h.service.BuyWithWallet(c.GetString("userID"), req.BookID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, gin.H{
			"message":  "Book purchased successfully",
			"purchase": purchase,
		})
	}
}

// ResendPDFHandler handles POST requests to retry artifact delivery
func (h *GinHandlers) ResendPDFHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		purchaseID := c.Param("purchaseId")
		if purchaseID == "" {
			response.BadRequest(c, "Purchase ID is required")
			return
		}

		if err := h.service.ResendDelivery(purchaseID, c.GetString("userID")); err != nil {
			respondError(c, err)
			return
		}
		response.OK(c, gin.H{"message": "PDF resent successfully"})
	}
}

// GetPurchaseHandler handles GET requests for a single purchase
func (h *GinHandlers) GetPurchaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		purchaseID := c.Param("purchaseId")
		if purchaseID == "" {
			response.BadRequest(c, "Purchase ID is required")
			return
		}

		purchase, err := h.service.GetPurchase(purchaseID, c.GetString("userID"))
		if err != nil {
			respondError(c, err)
			return
		}
		response.OK(c, purchase)
	}
}

// respondError maps orchestrator errors onto the API error taxonomy.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrPurchaseNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrSelfPurchase),
		errors.Is(err, ErrAlreadyOwned),
		errors.Is(err, ErrBookUnavailable),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrNotCompleted),
		errors.Is(err, identity.ErrInsufficientBalance):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrAlreadySettled):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNotAuthorized):
		response.Forbidden(c, err.Error())
	case errors.Is(err, gateway.ErrTimeout):
		response.InternalError(c, "Payment gateway request timed out")
	default:
		response.Handle(c, nil, err)
	}
}
