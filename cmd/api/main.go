package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KalilovM/topshopes-backend/api/routes"
	"github.com/KalilovM/topshopes-backend/internal/bootstrap"
	"github.com/KalilovM/topshopes-backend/internal/inventory"
	"github.com/KalilovM/topshopes-backend/internal/orders"
	"github.com/KalilovM/topshopes-backend/internal/payments"
	"github.com/KalilovM/topshopes-backend/internal/payouts"
	"github.com/KalilovM/topshopes-backend/internal/reservation"
	"github.com/KalilovM/topshopes-backend/internal/settlement"
	"github.com/KalilovM/topshopes-backend/pkg/metrics"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
)

const shutdownTimeout = 15 * time.Second

func main() {
	proc := bootstrap.Start("api")
	cfg, logg := proc.Config, proc.Logger
	dbClient := proc.Database(context.Background())
	redisClient := proc.Redis(context.Background())

	locks, err := reservation.NewRedisManager(reservation.RedisManagerParams{
		Store:   redisClient,
		Config:  cfg.Reservation,
		Metrics: metrics.NewReservationMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	proc.Check("create reservation manager", err)

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient.DB())

	scheduler, err := settlement.NewScheduler(settlement.NewRepository(dbClient.DB()))
	proc.Check("create settlement scheduler", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repository:  ordersRepo,
		Inventory:   inventory.NewRepository(dbClient.DB()),
		TxRunner:    dbClient,
		Outbox:      emitter,
		Locks:       locks,
		Scheduler:   scheduler,
		Logger:      logg,
		LockTimeout: cfg.Reservation.AcquireTimeout,
		GracePeriod: cfg.Settlement.GracePeriod,
	})
	proc.Check("create orders service", err)

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repository: payments.NewRepository(dbClient.DB()),
		Orders:     ordersRepo,
		TxRunner:   dbClient,
		Outbox:     emitter,
		Logger:     logg,
	})
	proc.Check("create payments service", err)

	payoutsService, err := payouts.NewService(payouts.NewRepository(dbClient.DB()), logg)
	proc.Check("create payouts service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:               dbClient,
			Redis:            redisClient,
			IdempotencyStore: redisClient,
			Metrics:          promhttp.Handler(),
			HTTPMetrics:      metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			Orders:           ordersService,
			Payments:         paymentsService,
			Payouts:          payoutsService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := proc.SignalContext()
	defer stop()
	ctx = logg.WithField(ctx, "addr", server.Addr)
	proc.Run(ctx, "api server", func(ctx context.Context) error {
		return serve(ctx, server)
	})
}

// serve runs server until ctx is canceled, then drains in-flight requests.
func serve(ctx context.Context, server *http.Server) error {
	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
