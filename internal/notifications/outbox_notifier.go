package notifications

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
)

// TemplateOrderConfirmation names the message rendered by the notification service.
const TemplateOrderConfirmation = "order_confirmation"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// OutboxNotifier queues notification requests on the outbox instead of calling a mail provider inline.
type OutboxNotifier struct {
	tx     txRunner
	outbox outboxPublisher
}

// NewOutboxNotifier builds a notifier that writes notification_requested events.
func NewOutboxNotifier(tx txRunner, publisher outboxPublisher) (*OutboxNotifier, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &OutboxNotifier{tx: tx, outbox: publisher}, nil
}

// OrderConfirmation queues a confirmation for order addressed to destination.
func (n *OutboxNotifier) OrderConfirmation(ctx context.Context, order models.Order, destination string) error {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification destination required")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   order.ID,
		Data: payloads.NotificationRequestedEvent{
			Template:    TemplateOrderConfirmation,
			Destination: destination,
			OrderID:     order.ID,
			UserID:      order.UserID,
			Data: map[string]any{
				"seller_id":              order.SellerID.String(),
				"total_items":            order.TotalItems,
				"total_discounted_price": order.TotalDiscountedPrice,
				"order_date":             order.OrderDate,
			},
		},
	}
	return n.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return n.outbox.Emit(ctx, tx, event)
	})
}
