package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart is the per-user staging area. Totals are derived from Items.
type Cart struct {
	ID                   uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_carts_user"`
	TotalPrice           int64      `gorm:"column:total_price;not null;default:0"`
	TotalDiscountedPrice int64      `gorm:"column:total_discounted_price;not null;default:0"`
	TotalItems           int        `gorm:"column:total_items;not null;default:0"`
	Discount             int64      `gorm:"column:discount;not null;default:0"`
	Items                []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
