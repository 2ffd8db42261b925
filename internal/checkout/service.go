package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/address"
	"github.com/angelmondragon/orderflow-backend/internal/cart"
	"github.com/angelmondragon/orderflow-backend/internal/checkout/helpers"
	"github.com/angelmondragon/orderflow-backend/internal/orders"
	product "github.com/angelmondragon/orderflow-backend/internal/products"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
)

const defaultDeliveryEstimate = 7 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// Notifier sends the order confirmation after checkout commits.
type Notifier interface {
	OrderConfirmation(ctx context.Context, order models.Order, destination string) error
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, input Input) (*Result, error)
}

// Input identifies the buyer and the saved address to ship to.
type Input struct {
	UserID      uuid.UUID
	AddressID   uuid.UUID
	NotifyEmail string
}

// Result lists the seller orders created and the cart items that were dropped.
type Result struct {
	Orders         []models.Order
	SkippedItemIDs []uuid.UUID
}

type service struct {
	tx               txRunner
	cartRepo         cart.CartRepository
	ordersRepo       orders.Repository
	addresses        address.Repository
	products         product.Repository
	stock            stockReserver
	outbox           outboxPublisher
	notifier         Notifier
	metrics          *metrics.OrderMetrics
	logg             *logger.Logger
	deliveryEstimate time.Duration
	now              func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo cart.CartRepository,
	ordersRepo orders.Repository,
	addresses address.Repository,
	products product.Repository,
	stock stockReserver,
	publisher outboxPublisher,
	notifier Notifier,
	orderMetrics *metrics.OrderMetrics,
	logg *logger.Logger,
	deliveryEstimate time.Duration,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deliveryEstimate <= 0 {
		deliveryEstimate = defaultDeliveryEstimate
	}
	return &service{
		tx:               tx,
		cartRepo:         cartRepo,
		ordersRepo:       ordersRepo,
		addresses:        addresses,
		products:         products,
		stock:            stock,
		outbox:           publisher,
		notifier:         notifier,
		metrics:          orderMetrics,
		logg:             logg,
		deliveryEstimate: deliveryEstimate,
		now:              time.Now,
	}, nil
}

func (s *service) Execute(ctx context.Context, input Input) (*Result, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ctx = s.logg.WithUserID(ctx, input.UserID.String())

	result, err := s.place(ctx, input)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	s.metrics.AddOrdersCreated(len(result.Orders))
	s.logg.Info(ctx, fmt.Sprintf("checkout created %d orders", len(result.Orders)))
	s.notify(ctx, result.Orders, input.NotifyEmail)
	return result, nil
}

func (s *service) place(ctx context.Context, input Input) (*Result, error) {
	result := &Result{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		record, err := cartRepo.FindByUserForUpdate(ctx, input.UserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if record == nil || len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").
				WithReason(pkgerrors.ReasonEmptyCart)
		}

		addr, err := s.addresses.WithTx(tx).FindForUser(ctx, input.UserID, input.AddressID)
		if err != nil {
			return err
		}

		productIDs := make([]uuid.UUID, 0, len(record.Items))
		for _, item := range record.Items {
			productIDs = append(productIDs, item.ProductID)
		}
		listings, err := s.products.WithTx(tx).FindByIDs(ctx, productIDs)
		if err != nil {
			return err
		}

		grouped, skipped := helpers.GroupItemsBySeller(record.Items, listings)
		for _, item := range skipped {
			result.SkippedItemIDs = append(result.SkippedItemIDs, item.ID)
			warnCtx := s.logg.WithFields(ctx, map[string]any{
				"cart_item_id": item.ID.String(),
				"product_id":   item.ProductID.String(),
			})
			s.logg.Warn(warnCtx, "cart item dropped: product missing or has no seller")
		}

		now := s.now().UTC()
		deliveryDate := now.Add(s.deliveryEstimate)
		shipping := addr.Snapshot()
		totalsBySeller := helpers.ComputeTotalsBySeller(grouped)

		for _, sellerID := range helpers.SortedSellerIDs(grouped) {
			totals := totalsBySeller[sellerID]
			order := models.Order{
				UserID:               input.UserID,
				SellerID:             sellerID,
				ShippingAddress:      shipping,
				Status:               enums.OrderStatusPending,
				PaymentStatus:        enums.PaymentStatusPending,
				PaymentMethod:        enums.PaymentMethodCOD,
				OriginalPrice:        totals.OriginalPrice,
				Discount:             totals.Discount,
				TotalDiscountedPrice: totals.DiscountedPrice,
				TotalItems:           totals.TotalItems,
				OrderDate:            now,
			}
			if err := ordersRepo.Create(ctx, &order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}

			lines := make([]models.OrderItem, 0, len(grouped[sellerID]))
			for _, item := range grouped[sellerID] {
				if err := s.stock.Reserve(ctx, tx, item.ProductID, item.Size, item.Quantity); err != nil {
					return err
				}
				lines = append(lines, models.OrderItem{
					OrderID:         order.ID,
					ProductID:       item.ProductID,
					Size:            item.Size,
					Quantity:        item.Quantity,
					Price:           item.Price,
					DiscountedPrice: item.DiscountedPrice,
					DiscountPercent: item.DiscountPercent,
					DeliveryDate:    deliveryDate,
				})
			}
			if err := ordersRepo.CreateItems(ctx, lines); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
			}
			order.Items = lines
			result.Orders = append(result.Orders, order)
		}

		if len(result.Orders) == 0 {
			return nil
		}

		if err := cartRepo.DeleteItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
		}
		if err := cartRepo.UpdateTotals(ctx, record.ID, cart.Totals{}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset cart totals")
		}
		return s.emitOrderCreated(ctx, tx, input.UserID, result.Orders)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, userID uuid.UUID, created []models.Order) error {
	checkoutID := uuid.New()
	ids := make([]uuid.UUID, 0, len(created))
	for _, order := range created {
		ids = append(ids, order.ID)
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateCheckout,
		AggregateID:   checkoutID,
		Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
		Data: payloads.OrderCreatedEvent{
			CheckoutID: checkoutID,
			UserID:     userID,
			OrderIDs:   ids,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
	}
	return nil
}

// notify is best-effort: failures are logged and never surface to the buyer.
func (s *service) notify(ctx context.Context, created []models.Order, destination string) {
	if s.notifier == nil || destination == "" {
		return
	}
	for _, order := range created {
		if err := s.notifier.OrderConfirmation(ctx, order, destination); err != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "order confirmation failed", err)
		}
	}
}

func (s *service) recordFailure(ctx context.Context, err error) {
	label := string(pkgerrors.ReasonOf(err))
	if label == "" {
		label = string(pkgerrors.CodeOf(err))
	}
	s.metrics.IncCheckoutFailure(label)
	s.logg.Warn(s.logg.WithField(ctx, "reason", label), "checkout aborted")
}
