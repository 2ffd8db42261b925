// Package registry maps outbox rows to Pub/Sub topics and typed payloads.
package registry

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// EventDescriptor describes where an event type is published and which
// aggregate is allowed to emit it.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(outbox.PayloadEnvelope) (any, error)
}

// ResolvedEvent is a validated outbox row ready for publishing.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry resolves outbox rows by event type.
type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that can never be published as stored.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// NewNonRetryableError wraps err so the publisher stops retrying the row.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(env outbox.PayloadEnvelope) (any, error) {
			payload := new(T)
			if err := env.DecodeData(payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// NewEventRegistry wires every known event type to its configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing []string
	for name, topic := range map[string]string{
		"orders":       cfg.OrdersTopic,
		"payments":     cfg.PaymentsTopic,
		"notification": cfg.NotificationTopic,
	} {
		if topic == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pubsub topics not configured: %v", missing)
	}

	descriptors := []EventDescriptor{
		route[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateCheckout, cfg.OrdersTopic),
		route[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder, cfg.OrdersTopic),
		route[payloads.PaymentStatusEvent](enums.EventPaymentCompleted, enums.AggregatePaymentDetail, cfg.PaymentsTopic),
		route[payloads.PaymentStatusEvent](enums.EventPaymentFailed, enums.AggregatePaymentDetail, cfg.PaymentsTopic),
		route[payloads.NotificationRequestedEvent](enums.EventNotificationRequested, enums.AggregateNotification, cfg.NotificationTopic),
	}

	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		reg.routes[d.EventType] = d
	}
	return reg, nil
}

// Resolve validates the row and decodes its typed payload. Every failure is
// a NonRetryableError: a malformed row will not heal on retry.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	resolved, err := r.resolve(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return resolved, nil
}

func (r *EventRegistry) resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	d, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, fmt.Errorf("unsupported event type %s", event.EventType)
	case d.AggregateType != event.AggregateType:
		return nil, fmt.Errorf("event %s emitted by %s, want %s", event.EventType, event.AggregateType, d.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, errors.New("missing aggregate_id")
	}

	env, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, err
	}
	payload, err := d.decode(env)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: d, Envelope: env, Payload: payload}, nil
}
