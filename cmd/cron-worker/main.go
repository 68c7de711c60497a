package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KalilovM/topshopes-backend/internal/bootstrap"
	"github.com/KalilovM/topshopes-backend/internal/cron"
	"github.com/KalilovM/topshopes-backend/internal/settlement"
	"github.com/KalilovM/topshopes-backend/pkg/metrics"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
)

func main() {
	proc := bootstrap.Start("cron-worker")
	cfg := proc.Config
	dbClient := proc.Database(context.Background())
	redisClient := proc.Redis(context.Background())

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+envName(cfg.App.Env)), cfg.Cron.LockTTL)
	proc.Check("create cron lock", err)

	reconciler, err := settlement.NewReconciler(settlement.ReconcilerParams{
		Tasks:       settlement.NewRepository(dbClient.DB()),
		TxRunner:    dbClient,
		Logger:      proc.Logger,
		Metrics:     metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		GracePeriod: cfg.Settlement.GracePeriod,
	})
	proc.Check("create settlement reconciler", err)

	sweepJob, err := cron.NewSettlementSweepJob(cron.SettlementSweepJobParams{
		Logger:     proc.Logger,
		Reconciler: reconciler,
	})
	proc.Check("create settlement sweep job", err)

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       proc.Logger,
		DB:           dbClient,
		Outbox:       outbox.NewRepository(dbClient.DB()),
		DeadLetters:  outbox.NewDLQRepository(dbClient.DB()),
		Retention:    days(cfg.Outbox.RetentionDays),
		DLQRetention: days(cfg.Outbox.DLQRetentionDays),
		ExhaustedAt:  cfg.Outbox.MaxAttempts,
	})
	proc.Check("create outbox retention job", err)

	registry := cron.NewRegistry()
	proc.Check("register settlement sweep", registry.Register(sweepJob, cfg.Cron.SweepEvery))
	proc.Check("register outbox retention", registry.Register(retentionJob, cfg.Cron.RetentionEvery))

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   proc.Logger,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	proc.Check("create cron service", err)

	ctx, stop := proc.SignalContext()
	defer stop()
	proc.Run(ctx, "cron worker", service.Run)
}

func envName(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
