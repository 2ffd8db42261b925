package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the catalog listing a seller offers. Stock lives on Sizes.
type Product struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SellerID        *uuid.UUID      `gorm:"column:seller_id;type:uuid;index"`
	Title           string          `gorm:"column:title;not null"`
	Price           int64           `gorm:"column:price;not null"`
	DiscountPercent int             `gorm:"column:discount_percent;not null;default:0"`
	DiscountedPrice int64           `gorm:"column:discounted_price;not null"`
	QuantitySold    int             `gorm:"column:quantity_sold;not null;default:0"`
	Sizes           []InventorySize `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
