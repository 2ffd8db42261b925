package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// PaymentDetail records one gateway payment attempt for an order.
type PaymentDetail struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	TransactionID  string              `gorm:"column:transaction_id;not null;uniqueIndex:ux_payment_details_transaction_id"`
	TotalAmount    int64               `gorm:"column:total_amount;not null"`
	ResponseCode   *string             `gorm:"column:response_code"`
	SecureHash     string              `gorm:"column:secure_hash;not null"`
	GatewayPayload map[string]string   `gorm:"column:gateway_payload;type:jsonb;serializer:json"`
	PaymentDate    *time.Time          `gorm:"column:payment_date"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentDetail) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
