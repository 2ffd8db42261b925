package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// Order is a single-seller purchase produced by checkout.
type Order struct {
	ID                   uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	SellerID             uuid.UUID             `gorm:"column:seller_id;type:uuid;not null;index"`
	ShippingAddress      types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	Status               enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus        enums.PaymentStatus   `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentMethod        enums.PaymentMethod   `gorm:"column:payment_method;type:payment_method;not null;default:'cod'"`
	OriginalPrice        int64                 `gorm:"column:original_price;not null"`
	Discount             int64                 `gorm:"column:discount;not null;default:0"`
	TotalDiscountedPrice int64                 `gorm:"column:total_discounted_price;not null"`
	TotalItems           int                   `gorm:"column:total_items;not null"`
	OrderDate            time.Time             `gorm:"column:order_date;not null"`
	DeliveryDate         *time.Time            `gorm:"column:delivery_date"`
	Items                []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
