package enums

// OutboxAggregateType names the entity that emitted an outbox event.
type OutboxAggregateType string

const (
	AggregateCheckout      OutboxAggregateType = "checkout"
	AggregateOrder         OutboxAggregateType = "order"
	AggregatePaymentDetail OutboxAggregateType = "payment_detail"
	AggregateNotification  OutboxAggregateType = "notification"
)

var aggregateTypes = values[OutboxAggregateType]{
	AggregateCheckout,
	AggregateOrder,
	AggregatePaymentDetail,
	AggregateNotification,
}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.contains(a) }

// OutboxEventType is the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderStatusChanged    OutboxEventType = "order_status_changed"
	EventPaymentCompleted      OutboxEventType = "payment_completed"
	EventPaymentFailed         OutboxEventType = "payment_failed"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var outboxEventTypes = values[OutboxEventType]{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventPaymentCompleted,
	EventPaymentFailed,
	EventNotificationRequested,
}

// OutboxEventTypes lists every event type the publisher can route.
func OutboxEventTypes() []OutboxEventType { return outboxEventTypes.list() }

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.contains(e) }
