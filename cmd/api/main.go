package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/abandoned"
	"github.com/angelmondragon/storefront-backend/internal/bridge"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cart/snapshot"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/whatsapp"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]any{"env": cfg.App.Env},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storefrontMetrics := metrics.NewStorefrontMetrics(registry)

	snapshots, err := buildSnapshotStore(cfg, logg, storefrontMetrics, dbClient, redisClient)
	if err != nil {
		return err
	}
	sessions := cart.NewSessions(cart.SessionsOptions{
		Snapshots:      snapshots,
		LoadTimeout:    cfg.Cart.LoadTimeout,
		PersistTimeout: cfg.Cart.PersistTimeout,
		IdleTTL:        cfg.Cart.IdleTTL,
		Logger:         logg,
		Metrics:        storefrontMetrics,
	})

	broker, err := buildBroker(cfg.Bridge, redisClient)
	if err != nil {
		return err
	}
	embedBridge, err := bridge.New(bridge.Options{
		Broker:         broker,
		Sessions:       sessions,
		Origins:        bridge.NewOriginPolicy(cfg.Bridge.AllowedOrigins),
		LoadingTimeout: cfg.Bridge.LoadingTimeout,
		Logger:         logg,
		Metrics:        storefrontMetrics,
	})
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}

	recorder, err := abandoned.NewRecorder(redisClient, logg)
	if err != nil {
		return fmt.Errorf("create abandoned checkout recorder: %w", err)
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), sessions)
	if err != nil {
		return fmt.Errorf("create catalog service: %w", err)
	}

	checkoutService, err := checkout.NewService(sessions, recorder, notifier, cfg.Payment, logg)
	if err != nil {
		return fmt.Errorf("create checkout service: %w", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"broker": cfg.Bridge.Broker,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			sessions,
			embedBridge,
			catalogService,
			checkoutService,
			recorder,
		),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sessions.RunSweeper(gctx, cfg.Cart.SweepInterval)
		return nil
	})
	g.Go(func() error {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildSnapshotStore(cfg *config.Config, logg *logger.Logger, m *metrics.StorefrontMetrics, dbClient *db.Client, redisClient *redis.Client) (*snapshot.Store, error) {
	redisTier, err := snapshot.NewRedisTier(redisClient, cfg.Cart.SnapshotTTL)
	if err != nil {
		return nil, fmt.Errorf("create redis snapshot tier: %w", err)
	}
	tiers := []snapshot.Tier{redisTier}
	if cfg.Cart.RemoteTier {
		pgTier, err := snapshot.NewPostgresTier(dbClient.DB())
		if err != nil {
			return nil, fmt.Errorf("create postgres snapshot tier: %w", err)
		}
		tiers = append(tiers, pgTier)
	}
	store, err := snapshot.NewStore(logg, m, tiers...)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}
	return store, nil
}

func buildBroker(cfg config.BridgeConfig, redisClient *redis.Client) (bridge.Broker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Broker)) {
	case "memory":
		return bridge.NewMemoryBroker(), nil
	case "", "redis":
		broker, err := bridge.NewRedisBroker(redisClient)
		if err != nil {
			return nil, fmt.Errorf("create redis broker: %w", err)
		}
		return broker, nil
	default:
		return nil, fmt.Errorf("unsupported bridge broker %q", cfg.Broker)
	}
}

func buildNotifier(cfg *config.Config) (notifications.Service, error) {
	if !cfg.WhatsApp.Enabled() {
		return nil, nil
	}
	client, err := whatsapp.NewClient(
		cfg.WhatsApp.Endpoint,
		whatsapp.WithToken(cfg.WhatsApp.Token),
		whatsapp.WithHTTPClient(&http.Client{Timeout: cfg.WhatsApp.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create whatsapp client: %w", err)
	}
	code, err := enums.ParseCurrency(cfg.Payment.Currency)
	if err != nil {
		return nil, fmt.Errorf("payment currency: %w", err)
	}
	svc, err := notifications.NewService(client, code, cfg.WhatsApp.ResumeURL, cfg.WhatsApp.Timeout)
	if err != nil {
		return nil, fmt.Errorf("create notifications service: %w", err)
	}
	return svc, nil
}
