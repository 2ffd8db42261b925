package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

const (
	OutboxRetentionJobName = "outbox-retention"

	defaultRetentionDays = 30
	defaultMinAttempts   = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// OutboxRetentionParams configure the outbox cleanup job. Published rows
// older than Retention days are removed, as are dead rows that reached
// MinAttempts without being published.
type OutboxRetentionParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxPurger
	Retention   int
	MinAttempts int
	Now         func() time.Time
}

func NewOutboxRetentionJob(p OutboxRetentionParams) (Job, error) {
	if p.DB == nil || p.Repository == nil {
		return nil, errors.New("outbox retention requires db and repository")
	}
	if p.Retention <= 0 {
		p.Retention = defaultRetentionDays
	}
	if p.MinAttempts <= 0 {
		p.MinAttempts = defaultMinAttempts
	}
	if p.Now == nil {
		p.Now = time.Now
	}

	return JobFunc(OutboxRetentionJobName, func(ctx context.Context) error {
		cutoff := p.Now().UTC().AddDate(0, 0, -p.Retention)
		var deleted int64
		err := p.DB.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := p.Repository.DeletePublishedBefore(ctx, tx, cutoff, p.MinAttempts)
			deleted = n
			return err
		})
		if err != nil {
			return fmt.Errorf("purge outbox before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		p.Logger.Info(p.Logger.WithFields(ctx, map[string]any{
			"cutoff":       cutoff,
			"rows_deleted": deleted,
		}), "outbox retention complete")
		return nil
	}), nil
}
