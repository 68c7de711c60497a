package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KalilovM/topshopes-backend/pkg/config"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/metrics"
	"github.com/KalilovM/topshopes-backend/pkg/redis"
)

const (
	defaultLeaseTTL      = 10 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
)

type leaseStore interface {
	redis.LeaseStore
	ReservationKey(unitID string) string
}

// RedisManagerParams configure the redis-backed lease manager.
type RedisManagerParams struct {
	Store   leaseStore
	Config  config.ReservationConfig
	Metrics *metrics.ReservationMetrics
	Logger  *logger.Logger
}

// RedisManager implements Manager with SET NX PX polling and an owner-checked release.
type RedisManager struct {
	store         leaseStore
	ttl           time.Duration
	retryInterval time.Duration
	metrics       *metrics.ReservationMetrics
	logg          *logger.Logger
	now           func() time.Time
}

func NewRedisManager(params RedisManagerParams) (*RedisManager, error) {
	if params.Store == nil {
		return nil, errors.New("lease store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	ttl := params.Config.LeaseTTL
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	retry := params.Config.RetryInterval
	if retry <= 0 {
		retry = defaultRetryInterval
	}
	return &RedisManager{
		store:         params.Store,
		ttl:           ttl,
		retryInterval: retry,
		metrics:       params.Metrics,
		logg:          params.Logger,
		now:           time.Now,
	}, nil
}

// Acquire polls for the unit key until it is won or timeout elapses.
func (m *RedisManager) Acquire(ctx context.Context, unitID uuid.UUID, timeout time.Duration) (*Lease, error) {
	key := m.store.ReservationKey(unitID.String())
	owner := uuid.NewString()
	start := m.now()
	deadline := start.Add(timeout)

	for {
		ok, err := m.store.SetNX(ctx, key, owner, m.ttl)
		if err != nil {
			m.metrics.Observe(metrics.ReservationError, m.now().Sub(start))
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire reservation lease")
		}
		if ok {
			m.metrics.Observe(metrics.ReservationAcquired, m.now().Sub(start))
			return newLease(unitID, func(ctx context.Context) error {
				return m.release(ctx, key, owner)
			}), nil
		}

		remaining := deadline.Sub(m.now())
		if remaining <= 0 {
			m.metrics.Observe(metrics.ReservationBusy, m.now().Sub(start))
			return nil, errLockBusy(unitID)
		}
		wait := m.retryInterval
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *RedisManager) release(ctx context.Context, key, owner string) error {
	released, err := m.store.ReleaseIfOwner(ctx, key, owner)
	if err != nil {
		return fmt.Errorf("release reservation lease: %w", err)
	}
	if !released {
		logCtx := m.logg.WithField(ctx, "lease_key", key)
		m.logg.Warn(logCtx, "reservation lease expired before release")
	}
	return nil
}
