package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
	defaultExhaustedAt     = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPurger interface {
	Purge(ctx context.Context, tx *gorm.DB, cutoff time.Time, exhaustedAt int) (outbox.PurgeCounts, error)
}

type deadLetterPurger interface {
	PurgeBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configure the outbox cleanup. Rows that never
// published are only dropped once they reached ExhaustedAt attempts, the same
// threshold the relay parks them at.
type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Outbox       outboxPurger
	DeadLetters  deadLetterPurger
	Retention    time.Duration
	DLQRetention time.Duration
	ExhaustedAt  int
	Now          func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		events:       params.Outbox,
		deadLetters:  params.DeadLetters,
		retention:    params.Retention,
		dlqRetention: params.DLQRetention,
		exhaustedAt:  params.ExhaustedAt,
		now:          params.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.dlqRetention <= 0 {
		job.dlqRetention = defaultDLQRetention
	}
	if job.exhaustedAt <= 0 {
		job.exhaustedAt = defaultExhaustedAt
	}
	if job.now == nil {
		job.now = time.Now
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	events       outboxPurger
	deadLetters  deadLetterPurger
	retention    time.Duration
	dlqRetention time.Duration
	exhaustedAt  int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run purges old outbox rows and, when a dead letter store is wired, dead
// letters past their own window. Both deletes commit together.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	eventCutoff := now.Add(-j.retention)
	dlqCutoff := now.Add(-j.dlqRetention)

	var (
		counts      outbox.PurgeCounts
		deadLetters int64
	)
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if counts, err = j.events.Purge(ctx, tx, eventCutoff, j.exhaustedAt); err != nil {
			return fmt.Errorf("purge outbox events: %w", err)
		}
		if j.deadLetters == nil {
			return nil
		}
		if deadLetters, err = j.deadLetters.PurgeBefore(ctx, tx, dlqCutoff); err != nil {
			return fmt.Errorf("purge dead letters: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"event_cutoff":         eventCutoff,
		"dlq_cutoff":           dlqCutoff,
		"published_deleted":    counts.Published,
		"exhausted_deleted":    counts.Exhausted,
		"dead_letters_deleted": deadLetters,
	}), "outbox retention cleanup complete")
	return nil
}
