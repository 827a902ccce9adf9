package catalog

import (
	"fmt"

	"github.com/booknest/booknest-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateBook(book *types.Book) error {
	return d.db.Create(book).Error
}

func (d *Database) GetBook(bookID string) (*types.Book, error) {
	var book types.Book
	if err := d.db.Where("book_id = ?", bookID).First(&book).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch book: %w", err)
	}
	return &book, nil
}

func (d *Database) ListAvailable() ([]types.Book, error) {
	var books []types.Book
	if err := d.db.Where("is_available = ?", true).
		Order("created_at DESC").
		Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

// IncrementSalesCount bumps the book's sales counter once per completed sale.
func (d *Database) IncrementSalesCount(bookID string) error {
	return d.db.Model(&types.Book{}).
		Where("book_id = ?", bookID).
		Update("sales_count", gorm.Expr("sales_count + 1")).Error
}
