package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem freezes price and size at purchase time so later catalog changes do not rewrite history.
type OrderItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Size            string    `gorm:"column:size;not null"`
	Quantity        int       `gorm:"column:quantity;not null"`
	Price           int64     `gorm:"column:price;not null"`
	DiscountedPrice int64     `gorm:"column:discounted_price;not null"`
	DiscountPercent int       `gorm:"column:discount_percent;not null;default:0"`
	DeliveryDate    time.Time `gorm:"column:delivery_date;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
