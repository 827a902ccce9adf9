package purchase

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

const (
	MethodRazorpay = "razorpay"
	MethodWallet   = "wallet"
)

// Purchase represents one buyer-book transaction. The seller and the amount
// are denormalized at creation time so later edits to the book never change
// a settled purchase. Rows are never deleted.
type Purchase struct {
	gorm.Model          `json:"-"`
	PurchaseID          string     `gorm:"uniqueIndex" json:"purchase_id"`
	BuyerID             string     `gorm:"index" json:"buyer_id"`
	BookID              string     `gorm:"index" json:"book_id"`
	SellerID            string     `gorm:"index" json:"seller_id"`
	Amount              float64    `json:"amount"`
	PaymentMethod       string     `json:"payment_method"` // razorpay or wallet
	RazorpayOrderID     string     `gorm:"index" json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID   string     `json:"razorpay_payment_id,omitempty"`
	RazorpaySignature   string     `json:"-"`
	Status              string     `json:"status"` // pending, completed, failed, cancelled
	PDFDelivered        bool       `json:"pdf_delivered"`
	PDFDeliveryAttempts int        `json:"pdf_delivery_attempts"`
	LastDeliveryAttempt *time.Time `json:"last_delivery_attempt,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// OrderResponse is returned by order creation and carries what the client
// needs to drive the gateway's hosted checkout.
type OrderResponse struct {
	OrderID    string      `json:"orderId"`
	Amount     float64     `json:"amount"` // major units; minor-unit conversion stays inside the gateway call
	PurchaseID string      `json:"purchaseId"`
	Book       BookSummary `json:"book"`
}

type BookSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}
