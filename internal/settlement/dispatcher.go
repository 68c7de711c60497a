package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/pkg/config"
	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/metrics"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
	"github.com/KalilovM/topshopes-backend/pkg/outbox/payloads"
)

const (
	baseBackoff      = 30 * time.Second
	defaultBatchSize = 25
	defaultAttempts  = 8
	defaultPoll      = 5 * time.Second
	defaultMaxDelay  = time.Hour
	// claimed tasks stay invisible to other workers this long
	claimTimeout     = 5 * time.Minute
)

type DispatcherParams struct {
	Tasks    Repository
	Settler  Settler
	TxRunner txRunner
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Metrics  *metrics.SettlementMetrics
	Config   config.SettlementConfig
	Now      func() time.Time
}

// Dispatcher runs due settlement tasks. Failed tasks are retried with
// exponential backoff and dead-lettered after the attempt budget is spent.
type Dispatcher struct {
	tasks       Repository
	settler     Settler
	tx          txRunner
	outbox      outboxPublisher
	logg        *logger.Logger
	metrics     *metrics.SettlementMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
	maxBackoff  time.Duration
	now         func() time.Time
}

// Summary counts the outcomes of one dispatch pass.
type Summary struct {
	Claimed      int
	Settled      int
	Noop         int
	Retried      int
	DeadLettered int
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Tasks == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settler required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	d := &Dispatcher{
		tasks:       params.Tasks,
		settler:     params.Settler,
		tx:          params.TxRunner,
		outbox:      params.Outbox,
		logg:        params.Logger,
		metrics:     params.Metrics,
		batchSize:   params.Config.BatchSize,
		maxAttempts: params.Config.MaxAttempts,
		poll:        params.Config.PollInterval,
		maxBackoff:  params.Config.MaxBackoff,
		now:         params.Now,
	}
	if d.batchSize <= 0 {
		d.batchSize = defaultBatchSize
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = defaultAttempts
	}
	if d.poll <= 0 {
		d.poll = defaultPoll
	}
	if d.maxBackoff <= 0 {
		d.maxBackoff = defaultMaxDelay
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

// Run polls until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		summary, err := d.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logg.Error(ctx, "settlement dispatch pass failed", err)
		}
		if summary.Claimed > 0 {
			logCtx := d.logg.WithFields(ctx, map[string]any{
				"claimed":       summary.Claimed,
				"settled":       summary.Settled,
				"noop":          summary.Noop,
				"retried":       summary.Retried,
				"dead_lettered": summary.DeadLettered,
			})
			d.logg.Info(logCtx, "settlement dispatch pass finished")
		}
		// drain a full batch without waiting for the next tick
		if summary.Claimed == d.batchSize && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch of due tasks and executes them.
func (d *Dispatcher) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary
	tasks, err := d.claim(ctx)
	if err != nil {
		return summary, err
	}
	summary.Claimed = len(tasks)

	var errs error
	for _, task := range tasks {
		if ctx.Err() != nil {
			return summary, multierr.Append(errs, ctx.Err())
		}
		result, err := d.settler.Settle(ctx, task.OrderID)
		if err == nil {
			if result.Settled {
				summary.Settled++
				d.metrics.Inc(metrics.SettlementSettled)
			} else {
				summary.Noop++
				d.metrics.Inc(metrics.SettlementNoop)
			}
			continue
		}

		dead, recordErr := d.recordFailure(ctx, task, err)
		if recordErr != nil {
			errs = multierr.Append(errs, recordErr)
			continue
		}
		if dead {
			summary.DeadLettered++
			d.metrics.Inc(metrics.SettlementDeadLettered)
		} else {
			summary.Retried++
			d.metrics.Inc(metrics.SettlementFailed)
		}
	}
	return summary, errs
}

func (d *Dispatcher) claim(ctx context.Context) ([]models.SettlementTask, error) {
	var claimed []models.SettlementTask
	err := d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := d.tasks.WithTx(tx)
		now := d.now().UTC()
		tasks, err := repo.FetchDue(ctx, now, d.batchSize)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(tasks))
		for _, task := range tasks {
			ids = append(ids, task.ID)
		}
		if err := repo.Postpone(ctx, ids, now.Add(claimTimeout)); err != nil {
			return err
		}
		claimed = tasks
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim settlement tasks: %w", err)
	}
	return claimed, nil
}

// recordFailure stores the failure and either schedules a retry or
// dead-letters the task. It reports whether the task was dead-lettered.
func (d *Dispatcher) recordFailure(ctx context.Context, task models.SettlementTask, cause error) (bool, error) {
	attempts := task.AttemptCount + 1
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"task_id":       task.ID.String(),
		"order_id":      task.OrderID.String(),
		"attempt_count": attempts,
	})

	if attempts < d.maxAttempts {
		next := d.now().UTC().Add(d.backoff(attempts))
		if err := d.tasks.RecordFailure(ctx, task.ID, attempts, cause.Error(), next); err != nil {
			return false, fmt.Errorf("record settlement failure for %s: %w", task.OrderID, err)
		}
		d.logg.Warn(d.logg.WithField(logCtx, "error", cause.Error()), "settlement failed, retry scheduled")
		return false, nil
	}

	err := d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := d.tasks.WithTx(tx).MarkDead(ctx, task.ID, attempts, cause.Error()); err != nil {
			return err
		}
		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementDeadLettered,
			AggregateType: enums.AggregateSettlementTask,
			AggregateID:   task.ID,
			Data: payloads.SettlementDeadLetteredEvent{
				TaskID:       task.ID,
				OrderID:      task.OrderID,
				AttemptCount: attempts,
				LastError:    truncate(cause.Error()),
			},
		})
	})
	if err != nil {
		return false, fmt.Errorf("dead-letter settlement task %s: %w", task.ID, err)
	}
	d.logg.Error(logCtx, "settlement task dead-lettered", cause)
	return true, nil
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := baseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.maxBackoff {
			return d.maxBackoff
		}
	}
	if delay > d.maxBackoff {
		return d.maxBackoff
	}
	return delay
}
