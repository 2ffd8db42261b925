package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventorySize is the stock counter for one size variant of a product.
type InventorySize struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_inventory_sizes_product_size"`
	Size      string    `gorm:"column:size;not null;uniqueIndex:ux_inventory_sizes_product_size"`
	Quantity  int       `gorm:"column:quantity;not null;default:0;check:chk_inventory_sizes_quantity,quantity >= 0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *InventorySize) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
