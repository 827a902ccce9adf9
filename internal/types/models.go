package types

import (
	"time"

	"gorm.io/gorm"
)

// User is the identity record. WalletBalance is only mutated through the
// conditional updates in the identity package.
type User struct {
	gorm.Model    `json:"-"`
	UserID        string    `gorm:"uniqueIndex" json:"user_id"`
	Name          string    `json:"name"`
	Email         string    `gorm:"uniqueIndex" json:"email"`
	PasswordHash  string    `json:"-"`
	WalletBalance float64   `json:"wallet_balance"`
	Bio           string    `json:"bio,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Book struct {
	gorm.Model         `json:"-"`
	BookID             string    `gorm:"uniqueIndex" json:"book_id"`
	Title              string    `json:"title"`
	Author             string    `json:"author"`
	Description        string    `json:"description"`
	Price              float64   `json:"price"`
	Category           string    `json:"category"`
	PDFFile            string    `json:"pdf_file,omitempty"` // path to the artifact on local storage
	SellerID           string    `gorm:"index" json:"seller_id"`
	VerificationStatus string    `json:"verification_status"` // PENDING, VERIFIED, REJECTED
	SalesCount         int64     `json:"sales_count"`
	IsAvailable        bool      `json:"is_available"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// OwnedBook records that a user owns a book. The composite unique index gives
// the ownership set its exactly-once semantics.
type OwnedBook struct {
	gorm.Model `json:"-"`
	UserID     string    `gorm:"uniqueIndex:idx_owned_user_book" json:"user_id"`
	BookID     string    `gorm:"uniqueIndex:idx_owned_user_book" json:"book_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// SoldBook records that a user has sold at least one copy of a book.
type SoldBook struct {
	gorm.Model `json:"-"`
	UserID     string    `gorm:"uniqueIndex:idx_sold_user_book" json:"user_id"`
	BookID     string    `gorm:"uniqueIndex:idx_sold_user_book" json:"book_id"`
	CreatedAt  time.Time `json:"created_at"`
}
