package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KalilovM/topshopes-backend/internal/bootstrap"
	"github.com/KalilovM/topshopes-backend/pkg/metrics"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
	"github.com/KalilovM/topshopes-backend/pkg/outbox/registry"
	"github.com/KalilovM/topshopes-backend/pkg/pubsub"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	cfg := proc.Config
	dbClient := proc.Database(context.Background())

	topics, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, proc.Logger)
	proc.Check("bootstrap pubsub", err)
	proc.OnClose("pubsub client", topics.Close)

	events, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Check("build event registry", err)

	relay, err := NewRelay(RelayParams{
		Config:        cfg.Outbox,
		Logger:        proc.Logger,
		DB:            dbClient,
		Topics:        topics,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	proc.Check("create outbox relay", err)

	ctx, stop := proc.SignalContext()
	defer stop()
	proc.Run(ctx, "outbox publisher", relay.Run)
}
