package migrations

import (
	"github.com/booknest/booknest-api/internal/purchase"
	"gorm.io/gorm"
)

// AddDeliveryTracking migrates the purchase schema, including the delivery
// tracking columns added after the first release.
func AddDeliveryTracking(db *gorm.DB) error {
	return db.AutoMigrate(&purchase.Purchase{})
}
