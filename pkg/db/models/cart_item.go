package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem snapshots the product pricing at the time it was added to the cart.
type CartItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID          uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Size            string    `gorm:"column:size;not null"`
	Quantity        int       `gorm:"column:quantity;not null"`
	Price           int64     `gorm:"column:price;not null"`
	DiscountedPrice int64     `gorm:"column:discounted_price;not null"`
	DiscountPercent int       `gorm:"column:discount_percent;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
