package orders

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/inventory"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
)

type fixture struct {
	conn     *gorm.DB
	svc      Service
	sellerID uuid.UUID
	buyerID  uuid.UUID
	product  models.Product
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.InventorySize{},
		&models.Order{},
		&models.OrderItem{},
		&models.OutboxEvent{},
	))
	return conn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := openTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	svc, err := NewService(
		NewRepository(conn),
		db.Wrap(conn),
		outbox.NewService(outbox.NewRepository(conn), logg),
		inventory.NewLedger(),
		metrics.NewOrderMetrics(prometheus.NewRegistry()),
		logg,
	)
	require.NoError(t, err)

	seller := uuid.New()
	product := models.Product{SellerID: &seller, Title: "Phone", Price: 1000, DiscountedPrice: 900, DiscountPercent: 10, QuantitySold: 2}
	require.NoError(t, conn.Create(&product).Error)
	require.NoError(t, conn.Create(&models.InventorySize{ProductID: product.ID, Size: "128GB", Quantity: 3}).Error)

	return &fixture{conn: conn, svc: svc, sellerID: seller, buyerID: uuid.New(), product: product}
}

func (f *fixture) seedOrder(t *testing.T, status enums.OrderStatus, method enums.PaymentMethod, payment enums.PaymentStatus) models.Order {
	t.Helper()
	order := models.Order{
		UserID:               f.buyerID,
		SellerID:             f.sellerID,
		Status:               status,
		PaymentStatus:        payment,
		PaymentMethod:        method,
		OriginalPrice:        2000,
		Discount:             200,
		TotalDiscountedPrice: 1800,
		TotalItems:           2,
		OrderDate:            time.Now().UTC(),
		Items: []models.OrderItem{{
			ProductID:       f.product.ID,
			Size:            "128GB",
			Quantity:        2,
			Price:           1000,
			DiscountedPrice: 900,
			DiscountPercent: 10,
			DeliveryDate:    time.Now().Add(7 * 24 * time.Hour).UTC(),
		}},
	}
	require.NoError(t, f.conn.Create(&order).Error)
	return order
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	var row models.InventorySize
	require.NoError(t, f.conn.Where("product_id = ? AND size = ?", f.product.ID, "128GB").First(&row).Error)
	return row.Quantity
}

func (f *fixture) sold(t *testing.T) int {
	t.Helper()
	var row models.Product
	require.NoError(t, f.conn.First(&row, "id = ?", f.product.ID).Error)
	return row.QuantitySold
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", id).Error)
	return order
}

func (f *fixture) seller() Actor { return Actor{UserID: f.sellerID, Role: enums.UserRoleSeller} }
func (f *fixture) buyer() Actor  { return Actor{UserID: f.buyerID, Role: enums.UserRoleCustomer} }

func TestHappyPathLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, enums.PaymentMethodCOD, enums.PaymentStatusPending)

	for _, step := range []struct {
		action Action
		want   enums.OrderStatus
	}{
		{ActionConfirm, enums.OrderStatusConfirmed},
		{ActionShip, enums.OrderStatusShipped},
		{ActionDeliver, enums.OrderStatusDelivered},
	} {
		updated, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, Action: step.action, Actor: f.seller()})
		require.NoError(t, err)
		assert.Equal(t, step.want, updated.Status)
	}

	stored := f.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	assert.Equal(t, enums.PaymentStatusCompleted, stored.PaymentStatus)
	require.NotNil(t, stored.DeliveryDate)
	assert.Equal(t, 3, f.stock(t))

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Order("created_at ASC").Find(&events).Error)
	require.Len(t, events, 3)
	for _, event := range events {
		assert.Equal(t, enums.EventOrderStatusChanged, event.EventType)
		assert.Equal(t, order.ID, event.AggregateID)
	}

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[2].Payload, &envelope))
	var data payloads.OrderStatusChangedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, enums.OrderStatusShipped, data.PreviousStatus)
	assert.Equal(t, enums.OrderStatusDelivered, data.Status)
}

func TestCancelRestoresStock(t *testing.T) {
	for _, status := range []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			order := f.seedOrder(t, status, enums.PaymentMethodCOD, enums.PaymentStatusPending)

			updated, err := f.svc.Transition(context.Background(), TransitionInput{OrderID: order.ID, Action: ActionCancel, Actor: f.buyer()})
			require.NoError(t, err)
			assert.Equal(t, enums.OrderStatusCancelled, updated.Status)
			assert.Equal(t, enums.PaymentStatusCancelled, updated.PaymentStatus)

			assert.Equal(t, 5, f.stock(t))
			assert.Equal(t, 0, f.sold(t))
		})
	}
}

func TestCancelRefundsCompletedGatewayPayment(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusConfirmed, enums.PaymentMethodVNPay, enums.PaymentStatusCompleted)

	updated, err := f.svc.Transition(context.Background(), TransitionInput{OrderID: order.ID, Action: ActionCancel, Actor: f.seller()})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, updated.PaymentStatus)
	assert.Equal(t, enums.PaymentStatusRefunded, f.reload(t, order.ID).PaymentStatus)
}

func TestCancelRejectedAfterShipment(t *testing.T) {
	for _, tc := range []struct {
		status enums.OrderStatus
		reason pkgerrors.Reason
	}{
		{enums.OrderStatusShipped, pkgerrors.ReasonInvalidTransition},
		{enums.OrderStatusDelivered, pkgerrors.ReasonOrderTerminal},
		{enums.OrderStatusCancelled, pkgerrors.ReasonOrderTerminal},
	} {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newFixture(t)
			order := f.seedOrder(t, tc.status, enums.PaymentMethodCOD, enums.PaymentStatusPending)

			_, err := f.svc.Transition(context.Background(), TransitionInput{OrderID: order.ID, Action: ActionCancel, Actor: f.seller()})
			require.Error(t, err)
			assert.Equal(t, tc.reason, pkgerrors.ReasonOf(err))

			assert.Equal(t, tc.status, f.reload(t, order.ID).Status)
			assert.Equal(t, 3, f.stock(t))
			assert.Equal(t, 2, f.sold(t))

			var count int64
			require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestCancelRollsBackWhenVariantMissing(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusPending, enums.PaymentMethodCOD, enums.PaymentStatusPending)
	require.NoError(t, f.conn.Where("product_id = ?", f.product.ID).Delete(&models.InventorySize{}).Error)

	_, err := f.svc.Transition(context.Background(), TransitionInput{OrderID: order.ID, Action: ActionCancel, Actor: f.buyer()})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ReasonSizeNotFound, pkgerrors.ReasonOf(err))
	assert.Equal(t, enums.OrderStatusPending, f.reload(t, order.ID).Status)
}

func TestTransitionAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, enums.PaymentMethodCOD, enums.PaymentStatusPending)

	_, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, Action: ActionConfirm, Actor: f.buyer()})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	stranger := Actor{UserID: uuid.New(), Role: enums.UserRoleSeller}
	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, Action: ActionConfirm, Actor: stranger})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ReasonOrderNotFound, pkgerrors.ReasonOf(err))

	admin := Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	updated, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, Action: ActionConfirm, Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, updated.Status)
}

func TestTransitionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Transition(ctx, TransitionInput{Action: ActionConfirm, Actor: f.seller()})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: uuid.New(), Action: "refund", Actor: f.seller()})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: uuid.New(), Action: ActionConfirm, Actor: f.seller()})
	assert.Equal(t, pkgerrors.ReasonOrderNotFound, pkgerrors.ReasonOf(err))

	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: uuid.New(), Action: ActionConfirm})
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, enums.PaymentMethodCOD, enums.PaymentStatusPending)
	f.seedOrder(t, enums.OrderStatusConfirmed, enums.PaymentMethodCOD, enums.PaymentStatusPending)

	got, err := f.svc.Get(ctx, order.ID, f.buyer())
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "128GB", got.Items[0].Size)

	_, err = f.svc.Get(ctx, order.ID, Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	assert.Equal(t, pkgerrors.ReasonOrderNotFound, pkgerrors.ReasonOf(err))

	_, err = f.svc.Get(ctx, order.ID, f.seller())
	require.NoError(t, err)

	list, err := f.svc.ListForCustomer(ctx, f.buyerID, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 2)
	assert.Empty(t, list.NextCursor)

	empty, err := f.svc.ListForCustomer(ctx, uuid.New(), pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, empty.Orders)
}

func TestListForCustomerPagesByCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, enums.OrderStatusPending, enums.PaymentMethodCOD, enums.PaymentStatusPending)
	f.seedOrder(t, enums.OrderStatusPending, enums.PaymentMethodCOD, enums.PaymentStatusPending)

	first, err := f.svc.ListForCustomer(ctx, f.buyerID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first.Orders, 1)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListForCustomer(ctx, f.buyerID, pagination.Params{Limit: 1, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.NotEqual(t, first.Orders[0].ID, second.Orders[0].ID)
	assert.Empty(t, second.NextCursor)

	_, err = f.svc.ListForCustomer(ctx, f.buyerID, pagination.Params{Cursor: "not-a-cursor"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil, nil)
	require.Error(t, err)
}
