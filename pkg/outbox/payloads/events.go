package payloads

import (
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent lists the seller orders produced by one checkout.
type OrderCreatedEvent struct {
	CheckoutID uuid.UUID   `json:"checkout_id"`
	UserID     uuid.UUID   `json:"user_id"`
	OrderIDs   []uuid.UUID `json:"order_ids"`
}

// OrderStatusChangedEvent is emitted after every committed state transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID           `json:"order_id"`
	UserID         uuid.UUID           `json:"user_id"`
	SellerID       uuid.UUID           `json:"seller_id"`
	Action         string              `json:"action"`
	PreviousStatus enums.OrderStatus   `json:"previous_status"`
	Status         enums.OrderStatus   `json:"status"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
}

// PaymentStatusEvent reports the outcome of a gateway callback.
type PaymentStatusEvent struct {
	PaymentDetailID uuid.UUID           `json:"payment_detail_id"`
	OrderID         uuid.UUID           `json:"order_id"`
	TransactionID   string              `json:"transaction_id"`
	Status          enums.PaymentStatus `json:"status"`
	ResponseCode    string              `json:"response_code"`
	Amount          int64               `json:"amount"`
	// OrderCancelled flags money captured after the order was cancelled; it needs a refund.
	OrderCancelled bool `json:"order_cancelled,omitempty"`
}

// NotificationRequestedEvent asks the notification service to deliver a message.
type NotificationRequestedEvent struct {
	Template    string         `json:"template"`
	Destination string         `json:"destination"`
	OrderID     uuid.UUID      `json:"order_id"`
	UserID      uuid.UUID      `json:"user_id"`
	Data        map[string]any `json:"data,omitempty"`
}
