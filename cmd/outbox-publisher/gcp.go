package main

import (
	"context"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/registry"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// newMessage ships the stored envelope untouched. Events of one aggregate
// share an ordering key so subscribers see them in commit order.
func newMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"schema_version": strconv.Itoa(resolved.Envelope.Version),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	return &gcpPublisher{Publisher: p}
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &gcpResult{
		result: p.Publisher.Publish(ctx, msg),
		resume: func() { p.ResumePublish(msg.OrderingKey) },
	}
}

// gcpResult resumes the ordering key after a failure; otherwise the client
// rejects every later message for that key.
type gcpResult struct {
	result *gcppubsub.PublishResult
	resume func()
}

func (r *gcpResult) Get(ctx context.Context) (string, error) {
	if r.result == nil {
		return "", errNilPublishResult
	}
	id, err := r.result.Get(ctx)
	if err != nil {
		r.resume()
	}
	return id, err
}
