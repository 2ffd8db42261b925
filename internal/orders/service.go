package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// StockRestorer returns reserved stock when an order is cancelled.
type StockRestorer interface {
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) error
	AdjustQuantitySold(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) error
}

// Service drives orders through their lifecycle.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListForCustomer(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderPage, error)
}

// OrderPage is one cursor page of a customer's orders.
type OrderPage struct {
	Orders     []models.Order
	NextCursor string
}

// Actor is the authenticated caller applying an action.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// TransitionInput names the order and the action to apply.
type TransitionInput struct {
	OrderID uuid.UUID
	Action  Action
	Actor   Actor
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory StockRestorer
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds an order lifecycle service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, inventory StockRestorer, orderMetrics *metrics.OrderMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outbox,
		inventory: inventory,
		metrics:   orderMetrics,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := ParseAction(string(input.Action)); err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orderNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := authorize(order, input.Actor, input.Action); err != nil {
			return err
		}

		step, err := lookup(order.Status, input.Action)
		if err != nil {
			return err
		}

		previous := order.Status
		now := s.now().UTC()
		updates := map[string]any{"status": step.to}
		order.Status = step.to

		switch step.effect {
		case effectMarkDelivered:
			order.PaymentStatus = enums.PaymentStatusCompleted
			order.DeliveryDate = &now
			updates["payment_status"] = order.PaymentStatus
			updates["delivery_date"] = now
		case effectRestoreStock:
			for _, item := range order.Items {
				if err := s.inventory.Restore(ctx, tx, item.ProductID, item.Size, item.Quantity); err != nil {
					return err
				}
				if err := s.inventory.AdjustQuantitySold(ctx, tx, item.ProductID, -item.Quantity); err != nil {
					return err
				}
			}
			order.PaymentStatus = cancelledPaymentStatus(order.PaymentMethod, order.PaymentStatus)
			updates["payment_status"] = order.PaymentStatus
		}

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: string(input.Actor.Role)},
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        order.ID,
				UserID:         order.UserID,
				SellerID:       order.SellerID,
				Action:         string(input.Action),
				PreviousStatus: previous,
				Status:         order.Status,
				PaymentStatus:  order.PaymentStatus,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(input.Action), string(updated.Status))
	s.logg.Info(ctx, fmt.Sprintf("order %s -> %s", input.Action, updated.Status))
	return updated, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !canView(order, actor) {
		return nil, orderNotFound()
	}
	return order, nil
}

func (s *service) ListForCustomer(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	orders, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := &OrderPage{Orders: orders}
	if len(orders) > limit {
		page.Orders = orders[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{SortKey: last.OrderDate, ID: last.ID})
	}
	return page, nil
}

// cancelledPaymentStatus refunds captured gateway payments and voids everything else.
func cancelledPaymentStatus(method enums.PaymentMethod, current enums.PaymentStatus) enums.PaymentStatus {
	if method.IsGateway() && current == enums.PaymentStatusCompleted {
		return enums.PaymentStatusRefunded
	}
	return enums.PaymentStatusCancelled
}

func canView(order *models.Order, actor Actor) bool {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return true
	case enums.UserRoleSeller:
		return order.SellerID == actor.UserID || order.UserID == actor.UserID
	default:
		return order.UserID == actor.UserID
	}
}

func authorize(order *models.Order, actor Actor, action Action) error {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleSeller:
		if order.SellerID == actor.UserID {
			return nil
		}
	}
	if order.UserID != actor.UserID {
		return orderNotFound()
	}
	if action != ActionCancel {
		return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only cancel their orders")
	}
	return nil
}

func orderNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithReason(pkgerrors.ReasonOrderNotFound)
}
