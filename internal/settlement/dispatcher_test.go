package settlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/KalilovM/topshopes-backend/internal/settlement"
	"github.com/KalilovM/topshopes-backend/pkg/config"
	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	"github.com/KalilovM/topshopes-backend/pkg/metrics"
)

type failingSettler struct {
	calls int
}

func (f *failingSettler) Settle(context.Context, uuid.UUID) (*settlement.Result, error) {
	f.calls++
	return nil, errors.New("payout store unavailable")
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func outcomeCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "topshopes_settlement_tasks_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			if hasLabel(metric, "outcome", outcome) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestDispatcherSettlesDueTasksOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	due := e.deliveredOrder(t)
	notDue := e.deliveredOrder(t)

	// pull the first order's task into the past
	require.NoError(t, e.tasks.Upsert(ctx, due.ID, time.Now().UTC().Add(-time.Minute)))

	reg := prometheus.NewRegistry()
	dispatcher, err := settlement.NewDispatcher(settlement.DispatcherParams{
		Tasks:    e.tasks,
		Settler:  e.settler,
		TxRunner: e.client,
		Outbox:   e.emitter,
		Logger:   e.logg,
		Metrics:  metrics.NewSettlementMetrics(reg),
		Config:   config.SettlementConfig{BatchSize: 10, MaxAttempts: 3},
	})
	require.NoError(t, err)

	summary, err := dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Claimed)
	require.Equal(t, 1, summary.Settled)
	require.Equal(t, float64(1), outcomeCount(t, reg, metrics.SettlementSettled))

	stored, err := e.orders.FindByID(ctx, due.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCompleted, stored.Status)

	untouched, err := e.orders.FindByID(ctx, notDue.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, untouched.Status)

	summary, err = dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, summary.Claimed)
}

func TestDispatcherRetriesThenDeadLetters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	orderID := uuid.New()
	c := &clock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	require.NoError(t, e.tasks.Upsert(ctx, orderID, c.now.Add(-time.Second)))

	settler := &failingSettler{}
	reg := prometheus.NewRegistry()
	dispatcher, err := settlement.NewDispatcher(settlement.DispatcherParams{
		Tasks:    e.tasks,
		Settler:  settler,
		TxRunner: e.client,
		Outbox:   e.emitter,
		Logger:   e.logg,
		Metrics:  metrics.NewSettlementMetrics(reg),
		Config:   config.SettlementConfig{BatchSize: 10, MaxAttempts: 2, MaxBackoff: time.Hour},
		Now:      c.Now,
	})
	require.NoError(t, err)

	summary, err := dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Retried)

	task, err := e.tasks.FindByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, 1, task.AttemptCount)
	require.Equal(t, enums.SettlementTaskScheduled, task.Status)
	require.NotNil(t, task.LastError)
	require.Contains(t, *task.LastError, "payout store unavailable")
	require.WithinDuration(t, c.now.Add(30*time.Second), task.RunAt, time.Second)

	summary, err = dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, summary.Claimed, "retry is not due yet")

	c.now = c.now.Add(time.Minute)
	summary, err = dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.DeadLettered)
	require.Equal(t, 2, settler.calls)

	task, err = e.tasks.FindByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, enums.SettlementTaskDead, task.Status)
	require.Equal(t, 2, task.AttemptCount)
	require.Equal(t, int64(1), e.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventSettlementDeadLettered))
	require.Equal(t, float64(1), outcomeCount(t, reg, metrics.SettlementFailed))
	require.Equal(t, float64(1), outcomeCount(t, reg, metrics.SettlementDeadLettered))

	c.now = c.now.Add(24 * time.Hour)
	summary, err = dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, summary.Claimed)
}

func TestReconcilerRearmsDeliveriesWithoutTask(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	longAgo := now.Add(-96 * time.Hour)
	recent := now.Add(-time.Hour)

	missed := &models.Order{BuyerID: uuid.New(), ShopID: uuid.New(), InventoryUnitID: uuid.New(), Quantity: 1, TotalPriceCents: 100, AddressID: uuid.New(), Status: enums.OrderStatusDelivered, DeliveredAt: &longAgo}
	fresh := &models.Order{BuyerID: uuid.New(), ShopID: uuid.New(), InventoryUnitID: uuid.New(), Quantity: 1, TotalPriceCents: 100, AddressID: uuid.New(), Status: enums.OrderStatusDelivered, DeliveredAt: &recent}
	armed := &models.Order{BuyerID: uuid.New(), ShopID: uuid.New(), InventoryUnitID: uuid.New(), Quantity: 1, TotalPriceCents: 100, AddressID: uuid.New(), Status: enums.OrderStatusDelivered, DeliveredAt: &longAgo}
	for _, order := range []*models.Order{missed, fresh, armed} {
		require.NoError(t, e.orders.Create(ctx, order))
	}
	require.NoError(t, e.tasks.Upsert(ctx, armed.ID, now.Add(time.Hour)))

	reg := prometheus.NewRegistry()
	reconciler, err := settlement.NewReconciler(settlement.ReconcilerParams{
		Tasks:       e.tasks,
		TxRunner:    e.client,
		Logger:      e.logg,
		Metrics:     metrics.NewSettlementMetrics(reg),
		GracePeriod: 72 * time.Hour,
	})
	require.NoError(t, err)

	n, err := reconciler.Rearm(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	task, err := e.tasks.FindByOrderID(ctx, missed.ID)
	require.NoError(t, err)
	require.False(t, task.RunAt.After(time.Now().UTC()))

	_, err = e.tasks.FindByOrderID(ctx, fresh.ID)
	require.ErrorIs(t, err, settlement.ErrNotFound)

	n, err = reconciler.Rearm(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
