package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KalilovM/topshopes-backend/api/controllers"
	ordercontrollers "github.com/KalilovM/topshopes-backend/api/controllers/orders"
	paymentcontrollers "github.com/KalilovM/topshopes-backend/api/controllers/payments"
	payoutcontrollers "github.com/KalilovM/topshopes-backend/api/controllers/payouts"
	webhookcontrollers "github.com/KalilovM/topshopes-backend/api/controllers/webhooks"
	"github.com/KalilovM/topshopes-backend/api/middleware"
	"github.com/KalilovM/topshopes-backend/internal/orders"
	"github.com/KalilovM/topshopes-backend/internal/payments"
	"github.com/KalilovM/topshopes-backend/internal/payouts"
	"github.com/KalilovM/topshopes-backend/pkg/config"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/metrics"
	pkgredis "github.com/KalilovM/topshopes-backend/pkg/redis"
)

// Dependencies bundles what the HTTP surface needs from cmd/api.
type Dependencies struct {
	DB               controllers.Pinger
	Redis            controllers.Pinger
	IdempotencyStore pkgredis.IdempotencyStore
	Metrics          http.Handler
	HTTPMetrics      *metrics.HTTPMetrics
	Orders           orders.Service
	Payments         payments.Service
	Payouts          payouts.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg, deps.HTTPMetrics),
		middleware.Logging(logg, deps.HTTPMetrics),
	)

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	r.With(middleware.PaymentSignature(cfg.Webhooks.PaymentGatewaySecret, logg)).
		Post("/api/v1/webhooks/payments", webhookcontrollers.PaymentDecision(deps.Payments, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.IdempotencyStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.RoleBuyer)).Post("/", ordercontrollers.Buy(deps.Orders, logg))
			r.With(middleware.RequireRole(logg, enums.RoleBuyer)).Get("/", ordercontrollers.List(deps.Orders, logg))
			r.With(middleware.RequireRole(logg, enums.RoleBuyer, enums.RoleSeller, enums.RoleAdmin)).Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.With(middleware.RequireRole(logg, enums.RoleBuyer)).Post("/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleBuyer))
			r.Post("/", paymentcontrollers.Create(deps.Payments, logg))
			r.Post("/{paymentId}/orders", paymentcontrollers.Assign(deps.Payments, logg))
		})

		r.Route("/shop", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleSeller))
			r.Get("/orders", ordercontrollers.List(deps.Orders, logg))
			r.Post("/orders/{orderId}/status", ordercontrollers.Transition(deps.Orders, logg))
			r.Get("/payouts", payoutcontrollers.ShopList(deps.Payouts, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Use(middleware.Idempotency(deps.IdempotencyStore, logg))

		r.Get("/orders", ordercontrollers.List(deps.Orders, logg))
		r.Post("/orders/{orderId}/status", ordercontrollers.Transition(deps.Orders, logg))
		r.Post("/payments/{paymentId}/decision", paymentcontrollers.AdminDecision(deps.Payments, logg))
		r.Get("/payouts", payoutcontrollers.AdminList(deps.Payouts, logg))
		r.Patch("/payouts/{payoutId}", payoutcontrollers.AttachProof(deps.Payouts, logg))
	})

	return r
}
