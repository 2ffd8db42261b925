package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
)

var testTopics = config.PubSubConfig{
	OrdersTopic:       "orders-topic",
	PaymentsTopic:     "payments-topic",
	NotificationTopic: "notification-topic",
}

func envelope(t *testing.T, data string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.SchemaVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return raw
}

func TestResolveCheckoutOrderCreated(t *testing.T) {
	reg, err := NewEventRegistry(testTopics)
	require.NoError(t, err)

	checkoutID, orderID := uuid.New(), uuid.New()
	body, err := json.Marshal(payloads.OrderCreatedEvent{CheckoutID: checkoutID, UserID: uuid.New(), OrderIDs: []uuid.UUID{orderID}})
	require.NoError(t, err)

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateCheckout,
		AggregateID:   checkoutID,
		Payload:       envelope(t, string(body)),
	})
	require.NoError(t, err)

	assert.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, []uuid.UUID{orderID}, payload.OrderIDs)
}

func TestResolveRoutesToTopic(t *testing.T) {
	reg, err := NewEventRegistry(testTopics)
	require.NoError(t, err)

	cases := []struct {
		eventType enums.OutboxEventType
		aggregate enums.OutboxAggregateType
		topic     string
		payload   any
	}{
		{enums.EventOrderStatusChanged, enums.AggregateOrder, "orders-topic", &payloads.OrderStatusChangedEvent{}},
		{enums.EventPaymentCompleted, enums.AggregatePaymentDetail, "payments-topic", &payloads.PaymentStatusEvent{}},
		{enums.EventPaymentFailed, enums.AggregatePaymentDetail, "payments-topic", &payloads.PaymentStatusEvent{}},
		{enums.EventNotificationRequested, enums.AggregateNotification, "notification-topic", &payloads.NotificationRequestedEvent{}},
	}
	for _, tc := range cases {
		t.Run(string(tc.eventType), func(t *testing.T) {
			resolved, err := reg.Resolve(models.OutboxEvent{
				EventType:     tc.eventType,
				AggregateType: tc.aggregate,
				AggregateID:   uuid.New(),
				Payload:       envelope(t, `{}`),
			})
			require.NoError(t, err)
			assert.Equal(t, tc.topic, resolved.Descriptor.Topic)
			assert.IsType(t, tc.payload, resolved.Payload)
		})
	}
}

func TestResolveRejectsMalformedRows(t *testing.T) {
	reg, err := NewEventRegistry(testTopics)
	require.NoError(t, err)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("reservation_released"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelope(t, `{}`),
		},
		"wrong aggregate": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelope(t, `{}`),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckout,
			Payload:       envelope(t, `{}`),
		},
		"null payload": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   uuid.New(),
			Payload:       envelope(t, `null`),
		},
		"wrong payload shape": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   uuid.New(),
			Payload:       envelope(t, `{"order_ids":"nope"}`),
		},
		"broken envelope": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			var nonRetry NonRetryableError
			require.ErrorAs(t, err, &nonRetry)
		})
	}
}

func TestResolveNullPayloadUnwrapsToEmpty(t *testing.T) {
	reg, err := NewEventRegistry(testTopics)
	require.NoError(t, err)

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePaymentDetail,
		AggregateID:   uuid.New(),
		Payload:       envelope(t, `null`),
	})
	assert.ErrorIs(t, err, outbox.ErrEmptyPayload)
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payments")
	assert.Contains(t, err.Error(), "notification")
}

func TestOrderCreatedBelongsToCheckout(t *testing.T) {
	reg, err := NewEventRegistry(testTopics)
	require.NoError(t, err)
	assert.Equal(t, enums.AggregateCheckout, reg.routes[enums.EventOrderCreated].AggregateType)
	assert.Len(t, reg.routes, len(enums.OutboxEventTypes()))
}
