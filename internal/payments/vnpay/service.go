package vnpay

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

const (
	timestampLayout     = "20060102150405"
	responseCodeSuccess = "00"
	defaultClientIP     = "127.0.0.1"
	refDigits           = 100000000
)

var minorUnits = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// Service builds signed VNPay redirects and settles their callbacks.
type Service interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error)
	ProcessCallback(ctx context.Context, params url.Values) (*CallbackResult, error)
}

// CreatePaymentInput identifies the order and the buyer starting the payment.
type CreatePaymentInput struct {
	OrderID  uuid.UUID
	UserID   uuid.UUID
	Role     enums.UserRole
	ClientIP string
}

// CreatePaymentResult carries the redirect the buyer must follow.
type CreatePaymentResult struct {
	PaymentURL    string    `json:"payment_url"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// CallbackResult reports the settled attempt and whether it was already settled before.
type CallbackResult struct {
	Detail *models.PaymentDetail
	Replay bool
	// OrderCancelled is set when the gateway captured money for an order that was already cancelled.
	OrderCancelled bool
}

type service struct {
	cfg     config.VNPayConfig
	loc     *time.Location
	repo    Repository
	orders  orders.Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.OrderMetrics
	logg    *logger.Logger
	now     func() time.Time
	newRef  func(orderID uuid.UUID) (string, error)
}

// NewService wires the gateway adapter.
func NewService(cfg config.VNPayConfig, repo Repository, ordersRepo orders.Repository, tx txRunner, publisher outboxPublisher, orderMetrics *metrics.OrderMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	loc, err := time.LoadLocation(strings.TrimSpace(cfg.Timezone))
	if err != nil || cfg.Timezone == "" {
		loc = time.FixedZone("ICT", 7*60*60)
	}
	return &service{
		cfg:     cfg,
		loc:     loc,
		repo:    repo,
		orders:  ordersRepo,
		tx:      tx,
		outbox:  publisher,
		metrics: orderMetrics,
		logg:    logg,
		now:     time.Now,
		newRef:  NewTransactionRef,
	}, nil
}

// NewTransactionRef returns "{orderId}_{8 random digits}".
func NewTransactionRef(orderID uuid.UUID) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(refDigits))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%08d", orderID, n.Int64()), nil
}

// GatewayAmount converts whole currency units to the minor units VNPay expects.
func GatewayAmount(total int64) int64 {
	return decimal.NewFromInt(total).Mul(minorUnits).IntPart()
}

func (s *service) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error) {
	if !s.cfg.Configured() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	var result *CreatePaymentResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orderNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != input.UserID && input.Role != enums.UserRoleAdmin {
			return orderNotFound()
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled orders cannot be paid")
		}
		if order.PaymentStatus == enums.PaymentStatusCompleted || order.PaymentStatus == enums.PaymentStatusRefunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
		}

		if order.PaymentMethod != enums.PaymentMethodVNPay {
			if err := ordersRepo.Update(ctx, order.ID, map[string]any{"payment_method": enums.PaymentMethodVNPay}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment method")
			}
		}

		ref, err := s.newRef(order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate transaction reference")
		}

		created := s.now().In(s.loc)
		expires := created.Add(s.cfg.Expiry())
		amount := GatewayAmount(order.TotalDiscountedPrice)
		params := s.requestParams(order, ref, amount, input.ClientIP, created, expires)
		hash := Sign(s.cfg.HashSecret, DataString(params))

		detail := &models.PaymentDetail{
			OrderID:       order.ID,
			PaymentMethod: enums.PaymentMethodVNPay,
			PaymentStatus: enums.PaymentStatusPending,
			TransactionID: ref,
			TotalAmount:   order.TotalDiscountedPrice,
			SecureHash:    hash,
		}
		if err := s.repo.WithTx(tx).Create(ctx, detail); err != nil {
			if db.IsUniqueViolation(err, "ux_payment_details_transaction_id") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "transaction reference collision")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment detail")
		}

		result = &CreatePaymentResult{
			PaymentURL:    s.cfg.PayURL + "?" + QueryString(params) + "&" + fieldSecureHash + "=" + hash,
			TransactionID: ref,
			Amount:        amount,
			ExpiresAt:     expires,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "transaction_id", result.TransactionID), "payment redirect created")
	return result, nil
}

func (s *service) requestParams(order *models.Order, ref string, amount int64, clientIP string, created, expires time.Time) map[string]string {
	if strings.TrimSpace(clientIP) == "" {
		clientIP = defaultClientIP
	}
	return map[string]string{
		"vnp_Version":    s.cfg.Version,
		"vnp_Command":    s.cfg.Command,
		"vnp_TmnCode":    s.cfg.TmnCode,
		"vnp_Amount":     strconv.FormatInt(amount, 10),
		"vnp_CurrCode":   s.cfg.CurrCode,
		"vnp_TxnRef":     ref,
		"vnp_OrderInfo":  "Payment for order " + order.ID.String(),
		"vnp_OrderType":  s.cfg.OrderType,
		"vnp_Locale":     s.cfg.Locale,
		"vnp_ReturnUrl":  s.cfg.ReturnURL,
		"vnp_IpAddr":     clientIP,
		"vnp_CreateDate": created.Format(timestampLayout),
		"vnp_ExpireDate": expires.Format(timestampLayout),
	}
}

func (s *service) ProcessCallback(ctx context.Context, params url.Values) (*CallbackResult, error) {
	if !Verify(s.cfg.HashSecret, params) {
		s.metrics.IncPaymentCallback("invalid_signature")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid callback signature").
			WithReason(pkgerrors.ReasonInvalidSignature)
	}
	ref := strings.TrimSpace(params.Get("vnp_TxnRef"))
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vnp_TxnRef is required")
	}
	code := params.Get("vnp_ResponseCode")
	ctx = s.logg.WithField(ctx, "transaction_id", ref)

	result := &CallbackResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		detail, err := repo.FindByTransactionIDForUpdate(ctx, ref)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found").
					WithReason(pkgerrors.ReasonTransactionNotFound)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment detail")
		}

		received, err := strconv.ParseInt(params.Get("vnp_Amount"), 10, 64)
		if err != nil || received != GatewayAmount(detail.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "callback amount does not match payment").
				WithReason(pkgerrors.ReasonAmountMismatch)
		}

		result.Detail = detail
		if detail.PaymentStatus != enums.PaymentStatusPending {
			result.Replay = true
			return nil
		}

		now := s.now().UTC()
		detail.ResponseCode = &code
		detail.GatewayPayload = flatten(params)
		eventType := enums.EventPaymentFailed
		if code == responseCodeSuccess {
			detail.PaymentStatus = enums.PaymentStatusCompleted
			detail.PaymentDate = &now
			eventType = enums.EventPaymentCompleted
			cancelled, err := s.settleOrder(ctx, tx, detail.OrderID)
			if err != nil {
				return err
			}
			result.OrderCancelled = cancelled
		} else {
			detail.PaymentStatus = enums.PaymentStatusFailed
		}
		if err := repo.Save(ctx, detail); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment detail")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePaymentDetail,
			AggregateID:   detail.ID,
			OccurredAt:    now,
			Data: payloads.PaymentStatusEvent{
				PaymentDetailID: detail.ID,
				OrderID:         detail.OrderID,
				TransactionID:   detail.TransactionID,
				Status:          detail.PaymentStatus,
				ResponseCode:    code,
				Amount:          detail.TotalAmount,
				OrderCancelled:  result.OrderCancelled,
			},
		})
	})
	if err != nil {
		outcome := strings.ToLower(string(pkgerrors.ReasonOf(err)))
		if outcome == "" {
			outcome = "error"
		}
		s.metrics.IncPaymentCallback(outcome)
		return nil, err
	}

	outcome := string(result.Detail.PaymentStatus)
	switch {
	case result.Replay:
		outcome = "replay"
	case result.OrderCancelled:
		outcome = "captured_after_cancel"
	}
	s.metrics.IncPaymentCallback(outcome)
	s.logg.Info(s.logg.WithField(ctx, "outcome", outcome), "payment callback processed")
	return result, nil
}

// settleOrder marks the order paid. A cancelled order keeps its status and is
// moved to REFUNDED since its stock was already released; the returned flag
// reports that case.
func (s *service) settleOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	ordersRepo := s.orders.WithTx(tx)
	order, err := ordersRepo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	target := enums.PaymentStatusCompleted
	cancelled := order.Status == enums.OrderStatusCancelled
	if cancelled {
		target = enums.PaymentStatusRefunded
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id":       order.ID.String(),
			"payment_status": string(order.PaymentStatus),
		}), "payment captured for cancelled order")
	}
	if order.PaymentStatus == target {
		return cancelled, nil
	}
	if err := ordersRepo.Update(ctx, order.ID, map[string]any{"payment_status": target}); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
	}
	return cancelled, nil
}

func flatten(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for name, values := range params {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}

func orderNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithReason(pkgerrors.ReasonOrderNotFound)
}
