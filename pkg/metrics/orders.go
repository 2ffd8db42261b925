package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics counts checkout, lifecycle and payment outcomes.
type OrderMetrics struct {
	ordersCreated    prometheus.Counter
	checkoutFailures *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	paymentCallbacks *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_orders_created_total",
		Help: "Seller orders created by checkout.",
	})
	checkoutFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Checkouts aborted, by reason.",
	}, []string{"reason"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Committed order state transitions.",
	}, []string{"action", "status"})
	paymentCallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Processed payment gateway callbacks, by result.",
	}, []string{"result"})
	reg.MustRegister(ordersCreated, checkoutFailures, transitions, paymentCallbacks)
	return &OrderMetrics{
		ordersCreated:    ordersCreated,
		checkoutFailures: checkoutFailures,
		transitions:      transitions,
		paymentCallbacks: paymentCallbacks,
	}
}

func (m *OrderMetrics) AddOrdersCreated(n int) {
	if m == nil || m.ordersCreated == nil || n <= 0 {
		return
	}
	m.ordersCreated.Add(float64(n))
}

func (m *OrderMetrics) IncCheckoutFailure(reason string) {
	if m == nil || m.checkoutFailures == nil {
		return
	}
	m.checkoutFailures.WithLabelValues(labelOrUnknown(reason)).Inc()
}

func (m *OrderMetrics) IncTransition(action, status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(labelOrUnknown(action), labelOrUnknown(status)).Inc()
}

func (m *OrderMetrics) IncPaymentCallback(result string) {
	if m == nil || m.paymentCallbacks == nil {
		return
	}
	m.paymentCallbacks.WithLabelValues(labelOrUnknown(result)).Inc()
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
