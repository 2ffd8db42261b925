package main

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/registry"
	"github.com/angelmondragon/orderflow-backend/pkg/pubsub"
)

// terminal reasons stamped into last_error
const (
	terminalUnresolvable = "unresolvable"
	terminalPermanent    = "permanent_publish_error"
	terminalMaxAttempts  = "max_attempts"
)

type outcome struct {
	kind   string
	reason string
	err    error
}

// dispatch publishes one row and records what happened. Only bookkeeping
// failures are returned, so one bad row never blocks the rest of the batch.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	})

	out := s.attempt(ctx, event)
	if err := s.record(ctx, tx, event, out); err != nil {
		return err
	}
	s.metrics.Observe(string(event.EventType), out.kind, s.now().Sub(event.CreatedAt))
	return nil
}

func (s *Service) attempt(ctx context.Context, event models.OutboxEvent) outcome {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcome{kind: metrics.OutboxTerminal, reason: terminalUnresolvable, err: err}
	}

	err = s.publish(ctx, event, resolved)
	var nonRetry registry.NonRetryableError
	switch {
	case err == nil:
		return outcome{kind: metrics.OutboxPublished}
	case errors.As(err, &nonRetry), pubsub.IsPermanent(err):
		return outcome{kind: metrics.OutboxTerminal, reason: terminalPermanent, err: err}
	case event.AttemptCount+1 >= s.maxAttempts:
		return outcome{kind: metrics.OutboxTerminal, reason: terminalMaxAttempts, err: err}
	default:
		return outcome{kind: metrics.OutboxRetry, err: err}
	}
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, out outcome) error {
	switch out.kind {
	case metrics.OutboxPublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(ctx, "outbox event published")
	case metrics.OutboxRetry:
		if err := s.repo.MarkFailedTx(tx, event.ID, out.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
		s.logg.Warn(s.logg.WithFields(ctx, pkgerrors.LogFields(out.err)), "outbox publish failed, will retry")
	default:
		cause := fmt.Errorf("%s: %w", out.reason, out.err)
		if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
		logCtx := s.logg.WithField(s.logg.WithFields(ctx, pkgerrors.LogFields(out.err)), "terminal_reason", out.reason)
		s.logg.Warn(logCtx, "outbox event will not be retried")
	}
	return nil
}

func (s *Service) publisherFor(topic string) publisher {
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.newPublisher(topic)
	if pub != nil {
		s.publishers[topic] = pub
	}
	return pub
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFor(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(ctx, newMessage(event, resolved))
	if result == nil {
		return registry.NewNonRetryableError(errNilPublishResult)
	}
	_, err := result.Get(ctx)
	return err
}
