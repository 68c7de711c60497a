package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KalilovM/topshopes-backend/internal/bootstrap"
	"github.com/KalilovM/topshopes-backend/internal/inventory"
	"github.com/KalilovM/topshopes-backend/internal/orders"
	"github.com/KalilovM/topshopes-backend/internal/payouts"
	"github.com/KalilovM/topshopes-backend/internal/settlement"
	"github.com/KalilovM/topshopes-backend/pkg/metrics"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
)

func main() {
	proc := bootstrap.Start("settlement-worker")
	dbClient := proc.Database(context.Background())

	tasks := settlement.NewRepository(dbClient.DB())
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), proc.Logger)

	settler, err := settlement.NewService(settlement.ServiceParams{
		Tasks:     tasks,
		Orders:    orders.NewRepository(dbClient.DB()),
		Inventory: inventory.NewRepository(dbClient.DB()),
		Payouts:   payouts.NewRepository(dbClient.DB()),
		TxRunner:  dbClient,
		Outbox:    emitter,
		Logger:    proc.Logger,
	})
	proc.Check("create settlement service", err)

	dispatcher, err := settlement.NewDispatcher(settlement.DispatcherParams{
		Tasks:    tasks,
		Settler:  settler,
		TxRunner: dbClient,
		Outbox:   emitter,
		Logger:   proc.Logger,
		Metrics:  metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		Config:   proc.Config.Settlement,
	})
	proc.Check("create settlement dispatcher", err)

	ctx, stop := proc.SignalContext()
	defer stop()
	proc.Run(ctx, "settlement worker", dispatcher.Run)
}
