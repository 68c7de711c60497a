package settlement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/metrics"
)

const defaultSweepLimit = 200

type ReconcilerParams struct {
	Tasks       Repository
	TxRunner    txRunner
	Logger      *logger.Logger
	Metrics     *metrics.SettlementMetrics
	GracePeriod time.Duration
	Limit       int
	Now         func() time.Time
}

// Reconciler re-arms delivered orders whose settlement task was never
// written. Dead-lettered tasks are left for operators.
type Reconciler struct {
	tasks   Repository
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.SettlementMetrics
	grace   time.Duration
	limit   int
	now     func() time.Time
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Tasks == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	r := &Reconciler{
		tasks:   params.Tasks,
		tx:      params.TxRunner,
		logg:    params.Logger,
		metrics: params.Metrics,
		grace:   params.GracePeriod,
		limit:   params.Limit,
		now:     params.Now,
	}
	if r.grace <= 0 {
		r.grace = 72 * time.Hour
	}
	if r.limit <= 0 {
		r.limit = defaultSweepLimit
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Rearm schedules every missed order to run now and returns how many it armed.
func (r *Reconciler) Rearm(ctx context.Context) (int, error) {
	now := r.now().UTC()
	orderIDs, err := r.tasks.FindUnarmedDeliveries(ctx, now.Add(-r.grace), r.limit)
	if err != nil {
		return 0, fmt.Errorf("find unarmed deliveries: %w", err)
	}

	var (
		armed int
		errs  error
	)
	for _, orderID := range orderIDs {
		err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return r.tasks.WithTx(tx).Upsert(ctx, orderID, now)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rearm order %s: %w", orderID, err))
			continue
		}
		armed++
	}
	r.metrics.AddRearmed(armed)

	if armed > 0 {
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"rearmed": armed,
			"found":   len(orderIDs),
		})
		r.logg.Warn(logCtx, "delivered orders without settlement task re-armed")
	}
	return armed, errs
}
