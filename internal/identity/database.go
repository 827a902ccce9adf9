package identity

import (
	"errors"
	"fmt"

	"github.com/booknest/booknest-api/internal/types"
	"gorm.io/gorm"
)

var ErrInsufficientBalance = errors.New("insufficient wallet balance")

// Database is the ledger store: wallet balances and ownership sets.
type Database struct {
	db *gorm.DB
}

// NewDatabase creates an identity store on the given connection. Passing a
// gorm transaction makes every mutation part of that transaction, which is how
// the purchase orchestrator keeps its multi-record writes atomic.
func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateUser(user *types.User) error {
	return d.db.Create(user).Error
}

func (d *Database) GetUserByID(userID string) (*types.User, error) {
	var user types.User
	if err := d.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

func (d *Database) GetUserByEmail(email string) (*types.User, error) {
	var user types.User
	if err := d.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// DebitWallet subtracts amount from the user's balance. The balance guard is
// part of the UPDATE itself so two concurrent purchases cannot both pass a
// stale balance check and overdraw.
func (d *Database) DebitWallet(userID string, amount float64) error {
	result := d.db.Model(&types.User{}).
		Where("user_id = ? AND wallet_balance >= ?", userID, amount).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// CreditWallet adds amount to the user's balance.
func (d *Database) CreditWallet(userID string, amount float64) error {
	result := d.db.Model(&types.User{}).
		Where("user_id = ?", userID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %s not found for wallet credit", userID)
	}
	return nil
}

// GrantOwnership adds the book to the user's owned set. Granting an already
// owned book is a no-op.
func (d *Database) GrantOwnership(userID, bookID string) error {
	owned := types.OwnedBook{UserID: userID, BookID: bookID}
	return d.db.Where("user_id = ? AND book_id = ?", userID, bookID).
		FirstOrCreate(&owned).Error
}

// RecordSale adds the book to the seller's sold set, once.
func (d *Database) RecordSale(userID, bookID string) error {
	sold := types.SoldBook{UserID: userID, BookID: bookID}
	return d.db.Where("user_id = ? AND book_id = ?", userID, bookID).
		FirstOrCreate(&sold).Error
}

// OwnsBook reports whether the book is in the user's owned set.
func (d *Database) OwnsBook(userID, bookID string) (bool, error) {
	var count int64
	if err := d.db.Model(&types.OwnedBook{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
