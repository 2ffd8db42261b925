package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox publish outcomes.
const (
	OutboxPublished = "published"
	OutboxRetry     = "retry"
	OutboxTerminal  = "terminal"
)

// OutboxMetrics tracks what the publisher did with each outbox row.
type OutboxMetrics struct {
	rows *prometheus.CounterVec
	lag  *prometheus.HistogramVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "rows_total",
			Help:      "Outbox rows handled by the publisher, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		lag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "outbox",
			Name:      "publish_lag_seconds",
			Help:      "Time from outbox insert to successful publish.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300, 1800},
		}, []string{"event_type"}),
	}
	reg.MustRegister(m.rows, m.lag)
	return m
}

// Observe records one row outcome. lag is only used for published rows.
func (m *OutboxMetrics) Observe(eventType, outcome string, lag time.Duration) {
	if m == nil || m.rows == nil {
		return
	}
	eventType = labelOrUnknown(eventType)
	m.rows.WithLabelValues(eventType, labelOrUnknown(outcome)).Inc()
	if outcome == OutboxPublished && lag >= 0 {
		m.lag.WithLabelValues(eventType).Observe(lag.Seconds())
	}
}
