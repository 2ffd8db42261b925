package vnpay

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
)

const testSecret = "SECRETKEY"

type harness struct {
	conn  *gorm.DB
	svc   *service
	buyer uuid.UUID
}

func testConfig() config.VNPayConfig {
	return config.VNPayConfig{
		TmnCode:       "TMNCODE1",
		HashSecret:    testSecret,
		PayURL:        "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:     "https://shop.example.com/payments/return",
		Version:       "2.1.0",
		Command:       "pay",
		CurrCode:      "VND",
		Locale:        "vn",
		OrderType:     "other",
		Timezone:      "Asia/Ho_Chi_Minh",
		ExpiryMinutes: 15,
	}
}

func newHarness(t *testing.T, cfg config.VNPayConfig) *harness {
	t.Helper()
	dsn := "file:vnpay_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentDetail{},
		&models.OutboxEvent{},
	))

	logg := logger.New(logger.Options{ServiceName: "vnpay-test", Output: io.Discard})
	svc, err := NewService(
		cfg,
		NewRepository(conn),
		orders.NewRepository(conn),
		db.Wrap(conn),
		outbox.NewService(outbox.NewRepository(conn), logg),
		metrics.NewOrderMetrics(prometheus.NewRegistry()),
		logg,
	)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC) }
	return &harness{conn: conn, svc: impl, buyer: uuid.New()}
}

func (h *harness) seedOrder(t *testing.T, status enums.OrderStatus, total int64) models.Order {
	t.Helper()
	order := models.Order{
		UserID:               h.buyer,
		SellerID:             uuid.New(),
		Status:               status,
		PaymentStatus:        enums.PaymentStatusPending,
		PaymentMethod:        enums.PaymentMethodCOD,
		OriginalPrice:        total,
		TotalDiscountedPrice: total,
		TotalItems:           1,
		OrderDate:            time.Now().UTC(),
	}
	require.NoError(t, h.conn.Create(&order).Error)
	return order
}

func (h *harness) create(t *testing.T, orderID uuid.UUID) *CreatePaymentResult {
	t.Helper()
	res, err := h.svc.CreatePayment(context.Background(), CreatePaymentInput{
		OrderID:  orderID,
		UserID:   h.buyer,
		Role:     enums.UserRoleCustomer,
		ClientIP: "10.0.0.8",
	})
	require.NoError(t, err)
	return res
}

func callback(ref string, amount int64, code string) url.Values {
	fields := map[string]string{
		"vnp_TmnCode":       "TMNCODE1",
		"vnp_TxnRef":        ref,
		"vnp_Amount":        strconv.FormatInt(amount, 10),
		"vnp_ResponseCode":  code,
		"vnp_TransactionNo": "14012345",
		"vnp_BankCode":      "NCB",
	}
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("vnp_SecureHash", Sign(testSecret, DataString(fields)))
	return values
}

func TestCreatePaymentBuildsSignedRedirect(t *testing.T) {
	h := newHarness(t, testConfig())
	order := h.seedOrder(t, enums.OrderStatusPending, 500000)

	res := h.create(t, order.ID)
	assert.Equal(t, int64(50000000), res.Amount)

	parsed, err := url.Parse(res.PaymentURL)
	require.NoError(t, err)
	assert.Equal(t, "sandbox.vnpayment.vn", parsed.Host)
	query := parsed.Query()
	assert.Equal(t, "50000000", query.Get("vnp_Amount"))
	assert.Equal(t, res.TransactionID, query.Get("vnp_TxnRef"))
	assert.Equal(t, "10.0.0.8", query.Get("vnp_IpAddr"))
	assert.Equal(t, "Payment for order "+order.ID.String(), query.Get("vnp_OrderInfo"))
	assert.Equal(t, "20260301100000", query.Get("vnp_CreateDate"))
	assert.Equal(t, "20260301101500", query.Get("vnp_ExpireDate"))
	assert.Regexp(t, "^"+order.ID.String()+"_[0-9]{8}$", res.TransactionID)
	assert.True(t, Verify(testSecret, query))

	var detail models.PaymentDetail
	require.NoError(t, h.conn.First(&detail, "transaction_id = ?", res.TransactionID).Error)
	assert.Equal(t, enums.PaymentStatusPending, detail.PaymentStatus)
	assert.Equal(t, int64(500000), detail.TotalAmount)
	assert.Equal(t, query.Get("vnp_SecureHash"), detail.SecureHash)

	var reloaded models.Order
	require.NoError(t, h.conn.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentMethodVNPay, reloaded.PaymentMethod)
}

func TestCreatePaymentTwiceKeepsBothAttempts(t *testing.T) {
	h := newHarness(t, testConfig())
	order := h.seedOrder(t, enums.OrderStatusPending, 1000)

	first := h.create(t, order.ID)
	second := h.create(t, order.ID)
	assert.NotEqual(t, first.TransactionID, second.TransactionID)

	rows, err := h.svc.repo.ListByOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCreatePaymentRejections(t *testing.T) {
	t.Run("cancelled order", func(t *testing.T) {
		h := newHarness(t, testConfig())
		order := h.seedOrder(t, enums.OrderStatusCancelled, 1000)
		_, err := h.svc.CreatePayment(context.Background(), CreatePaymentInput{OrderID: order.ID, UserID: h.buyer})
		assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	})

	t.Run("foreign order", func(t *testing.T) {
		h := newHarness(t, testConfig())
		order := h.seedOrder(t, enums.OrderStatusPending, 1000)
		_, err := h.svc.CreatePayment(context.Background(), CreatePaymentInput{OrderID: order.ID, UserID: uuid.New(), Role: enums.UserRoleCustomer})
		assert.Equal(t, pkgerrors.ReasonOrderNotFound, pkgerrors.ReasonOf(err))
	})

	t.Run("unknown order", func(t *testing.T) {
		h := newHarness(t, testConfig())
		_, err := h.svc.CreatePayment(context.Background(), CreatePaymentInput{OrderID: uuid.New(), UserID: h.buyer})
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	})

	t.Run("gateway not configured", func(t *testing.T) {
		cfg := testConfig()
		cfg.HashSecret = ""
		h := newHarness(t, cfg)
		order := h.seedOrder(t, enums.OrderStatusPending, 1000)
		_, err := h.svc.CreatePayment(context.Background(), CreatePaymentInput{OrderID: order.ID, UserID: h.buyer})
		assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	})
}

func TestProcessCallbackSuccessCompletesOrder(t *testing.T) {
	h := newHarness(t, testConfig())
	order := h.seedOrder(t, enums.OrderStatusConfirmed, 500000)
	res := h.create(t, order.ID)

	out, err := h.svc.ProcessCallback(context.Background(), callback(res.TransactionID, 50000000, "00"))
	require.NoError(t, err)
	assert.False(t, out.Replay)
	assert.Equal(t, enums.PaymentStatusCompleted, out.Detail.PaymentStatus)

	var detail models.PaymentDetail
	require.NoError(t, h.conn.First(&detail, "transaction_id = ?", res.TransactionID).Error)
	assert.Equal(t, enums.PaymentStatusCompleted, detail.PaymentStatus)
	require.NotNil(t, detail.PaymentDate)
	require.NotNil(t, detail.ResponseCode)
	assert.Equal(t, "00", *detail.ResponseCode)
	assert.Equal(t, "NCB", detail.GatewayPayload["vnp_BankCode"])

	var reloaded models.Order
	require.NoError(t, h.conn.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusCompleted, reloaded.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, reloaded.Status)

	var events []models.OutboxEvent
	require.NoError(t, h.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventPaymentCompleted, events[0].EventType)
	assert.Equal(t, detail.ID, events[0].AggregateID)
}

func TestProcessCallbackFailureLeavesOrderPending(t *testing.T) {
	h := newHarness(t, testConfig())
	order := h.seedOrder(t, enums.OrderStatusPending, 1000)
	res := h.create(t, order.ID)

	out, err := h.svc.ProcessCallback(context.Background(), callback(res.TransactionID, 100000, "24"))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, out.Detail.PaymentStatus)

	var reloaded models.Order
	require.NoError(t, h.conn.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusPending, reloaded.PaymentStatus)

	var event models.OutboxEvent
	require.NoError(t, h.conn.First(&event).Error)
	assert.Equal(t, enums.EventPaymentFailed, event.EventType)
}

func TestProcessCallbackReplayIsNoop(t *testing.T) {
	h := newHarness(t, testConfig())
	order := h.seedOrder(t, enums.OrderStatusPending, 1000)
	res := h.create(t, order.ID)

	_, err := h.svc.ProcessCallback(context.Background(), callback(res.TransactionID, 100000, "00"))
	require.NoError(t, err)

	out, err := h.svc.ProcessCallback(context.Background(), callback(res.TransactionID, 100000, "24"))
	require.NoError(t, err)
	assert.True(t, out.Replay)
	assert.Equal(t, enums.PaymentStatusCompleted, out.Detail.PaymentStatus)

	var count int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessCallbackAfterCancelMarksRefund(t *testing.T) {
	h := newHarness(t, testConfig())
	order := h.seedOrder(t, enums.OrderStatusPending, 500000)
	res := h.create(t, order.ID)
	require.NoError(t, h.conn.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
		"status":         enums.OrderStatusCancelled,
		"payment_status": enums.PaymentStatusCancelled,
	}).Error)

	out, err := h.svc.ProcessCallback(context.Background(), callback(res.TransactionID, 50000000, "00"))
	require.NoError(t, err)
	assert.True(t, out.OrderCancelled)
	assert.Equal(t, enums.PaymentStatusCompleted, out.Detail.PaymentStatus)

	var reloaded models.Order
	require.NoError(t, h.conn.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, reloaded.PaymentStatus)

	var events []models.OutboxEvent
	require.NoError(t, h.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventPaymentCompleted, events[0].EventType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var data payloads.PaymentStatusEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.True(t, data.OrderCancelled)
	assert.Equal(t, order.ID, data.OrderID)
}

func TestProcessCallbackRejections(t *testing.T) {
	h := newHarness(t, testConfig())
	order := h.seedOrder(t, enums.OrderStatusPending, 1000)
	res := h.create(t, order.ID)

	t.Run("bad signature", func(t *testing.T) {
		values := callback(res.TransactionID, 100000, "00")
		values.Set("vnp_ResponseCode", "24")
		_, err := h.svc.ProcessCallback(context.Background(), values)
		assert.Equal(t, pkgerrors.ReasonInvalidSignature, pkgerrors.ReasonOf(err))
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := h.svc.ProcessCallback(context.Background(), callback("missing_00000000", 100000, "00"))
		assert.Equal(t, pkgerrors.ReasonTransactionNotFound, pkgerrors.ReasonOf(err))
	})

	t.Run("amount mismatch", func(t *testing.T) {
		_, err := h.svc.ProcessCallback(context.Background(), callback(res.TransactionID, 99, "00"))
		assert.Equal(t, pkgerrors.ReasonAmountMismatch, pkgerrors.ReasonOf(err))
	})

	var detail models.PaymentDetail
	require.NoError(t, h.conn.First(&detail, "transaction_id = ?", res.TransactionID).Error)
	assert.Equal(t, enums.PaymentStatusPending, detail.PaymentStatus)
}

func TestGatewayAmount(t *testing.T) {
	assert.Equal(t, int64(50000000), GatewayAmount(500000))
	assert.Equal(t, int64(0), GatewayAmount(0))
}
