package purchase

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/booknest/booknest-api/internal/catalog"
	"github.com/booknest/booknest-api/internal/identity"
)

var ErrAlreadySettled = errors.New("payment already verified")

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreatePurchase(purchase *Purchase) error {
	return d.db.Create(purchase).Error
}

func (d *Database) GetPurchase(purchaseID string) (*Purchase, error) {
	var purchase Purchase
	if err := d.db.Where("purchase_id = ?", purchaseID).First(&purchase).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch purchase: %w", err)
	}
	return &purchase, nil
}

func (d *Database) GetPurchaseByOrderID(razorpayOrderID string) (*Purchase, error) {
	var purchase Purchase
	if err := d.db.Where("razorpay_order_id = ?", razorpayOrderID).First(&purchase).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch purchase: %w", err)
	}
	return &purchase, nil
}

// HasCompletedPurchase reports whether the buyer already holds a completed
// purchase for the book.
func (d *Database) HasCompletedPurchase(buyerID, bookID string) (bool, error) {
	var count int64
	if err := d.db.Model(&Purchase{}).
		Where("buyer_id = ? AND book_id = ? AND status = ?", buyerID, bookID, StatusCompleted).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SettleWallet runs the whole wallet purchase in one transaction: conditional
// buyer debit, seller credit, ownership grant, sale record, sales counter and
// the purchase row itself. If the debit guard fails nothing is written.
func (d *Database) SettleWallet(purchase *Purchase) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		ledger := identity.NewDatabase(tx)
		books := catalog.NewDatabase(tx)

		if err := ledger.DebitWallet(purchase.BuyerID, purchase.Amount); err != nil {
			return err
		}
		if err := ledger.CreditWallet(purchase.SellerID, purchase.Amount); err != nil {
			return err
		}
		if err := ledger.GrantOwnership(purchase.BuyerID, purchase.BookID); err != nil {
			return err
		}
		if err := ledger.RecordSale(purchase.SellerID, purchase.BookID); err != nil {
			return err
		}
		if err := books.IncrementSalesCount(purchase.BookID); err != nil {
			return err
		}

		return tx.Create(purchase).Error
	})
}

// SettleVerifiedPayment completes a pending gateway purchase in one
// transaction. The status transition is a conditional update keyed on the
// pending state, so a replayed verification hits zero rows and the seller is
// credited exactly once.
func (d *Database) SettleVerifiedPayment(purchase *Purchase, paymentID, signature string) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Purchase{}).
			Where("purchase_id = ? AND status = ?", purchase.PurchaseID, StatusPending).
			Updates(map[string]interface{}{
				"status":              StatusCompleted,
				"razorpay_payment_id": paymentID,
				"razorpay_signature":  signature,
				"pdf_delivered":       false,
				"updated_at":          time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadySettled
		}

		ledger := identity.NewDatabase(tx)
		books := catalog.NewDatabase(tx)

		if err := ledger.GrantOwnership(purchase.BuyerID, purchase.BookID); err != nil {
			return err
		}
		if err := ledger.RecordSale(purchase.SellerID, purchase.BookID); err != nil {
			return err
		}
		if err := ledger.CreditWallet(purchase.SellerID, purchase.Amount); err != nil {
			return err
		}
		return books.IncrementSalesCount(purchase.BookID)
	})
}

// RecordDeliveryAttempt is the sole writer of the delivery-tracking fields.
// The increment runs against the persisted row, never through a stale
// in-memory copy, and a failed attempt after a successful one does not unset
// the delivered flag.
func (d *Database) RecordDeliveryAttempt(purchaseID string, delivered bool) error {
	result := d.db.Model(&Purchase{}).
		Where("purchase_id = ?", purchaseID).
		Updates(map[string]interface{}{
			"pdf_delivery_attempts": gorm.Expr("pdf_delivery_attempts + 1"),
			"pdf_delivered":         gorm.Expr("pdf_delivered OR ?", delivered),
			"last_delivery_attempt": time.Now(),
			"updated_at":            time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("purchase not found")
	}
	return nil
}

// CancelStalePending cancels gateway purchases that stayed pending longer
// than the TTL. Returns how many rows were cancelled.
func (d *Database) CancelStalePending(ttl time.Duration) (int64, error) {
	result := d.db.Model(&Purchase{}).
		Where("status = ? AND payment_method = ? AND created_at < ?",
			StatusPending, MethodRazorpay, time.Now().Add(-ttl)).
		Updates(map[string]interface{}{
			"status":     StatusCancelled,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
