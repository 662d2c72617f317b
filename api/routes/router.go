package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/abandoned"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Bridge is the messaging bridge surface the router exposes.
type Bridge interface {
	controllers.EmbedBridge
	controllers.SyncStatus
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	sessions controllers.CartSessions,
	embedBridge Bridge,
	catalogService catalog.Service,
	checkoutService checkoutsvc.Service,
	abandonedRecorder abandoned.Recorder,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Bridge.AllowedOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		rateStore        middleware.RateCounter
		checks           = map[string]controllers.ReadinessCheck{}
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		rateStore = redisClient
		checks["redis"] = redisClient.Ping
	}
	if dbP != nil {
		checks["db"] = dbP.Ping
	}

	presenter := controllers.CartPresenter{
		Currency: enums.Currency(cfg.Payment.Currency),
		Sync:     embedBridge,
	}
	idempotent := middleware.Idempotency(idempotencyStore, middleware.CartIdempotency, logg)
	checkoutOnce := middleware.Idempotency(idempotencyStore, middleware.CheckoutIdempotency, logg)
	abandonLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:       "abandon",
		Window:     cfg.Checkout.AbandonWindow,
		PerIP:      cfg.Checkout.AbandonIPCap,
		PerSession: cfg.Checkout.AbandonLimit,
		PerContact: cfg.Checkout.AbandonLimit,
	}, rateStore, logg)
	embedLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:       "embed",
		Window:     time.Minute,
		PerSession: cfg.Bridge.MessageLimit,
	}, rateStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/upsells", controllers.Upsells(catalogService, logg))
		r.Get("/checkout/callback", controllers.CheckoutCallback(checkoutService, logg))

		r.Route("/carts/{sessionId}", func(r chi.Router) {
			r.Use(middleware.SessionLogContext(logg))
			r.Get("/", controllers.CartFetch(sessions, presenter, logg))
			r.Delete("/", controllers.CartClear(sessions, presenter, logg))

			r.With(idempotent).Post("/items", controllers.CartAddItem(sessions, presenter, logg))
			r.Patch("/items/{itemId}", controllers.CartSetQuantity(sessions, presenter, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(sessions, presenter, logg))
			r.With(idempotent).Post("/items/{itemId}/increment", controllers.CartIncrement(sessions, presenter, logg))
			r.With(idempotent).Post("/items/{itemId}/decrement", controllers.CartDecrement(sessions, presenter, logg))

			r.Get("/order-bumps", controllers.CartOrderBumps(catalogService, logg))
			r.With(idempotent).Post("/order-bumps/{bumpId}", controllers.CartAddOrderBump(catalogService, sessions, presenter, logg))

			r.With(checkoutOnce).Post("/checkout", controllers.CheckoutStart(checkoutService, logg))
			r.With(abandonLimit, idempotent).Post("/checkout/abandon", controllers.CheckoutAbandon(checkoutService, logg))
		})

		r.Route("/embed/{sessionId}", func(r chi.Router) {
			r.With(embedLimit).Post("/messages", controllers.EmbedDeliver(embedBridge, logg))
			r.Get("/events", controllers.EmbedEvents(embedBridge, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth, logg))
		r.Use(middleware.RequireRole(cfg.Auth.AdminRole, logg))
		r.Get("/abandoned-checkouts", controllers.AdminAbandonedCheckouts(abandonedRecorder, logg))
		r.Get("/order-bumps", controllers.AdminOrderBumps(catalogService, logg))
		r.Get("/upsells", controllers.AdminUpsells(catalogService, logg))
	})

	return r
}
