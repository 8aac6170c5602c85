package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/config"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/handler"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/backend"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/cache"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/notify"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/sqlite"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/ledger"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/port"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("data_backend", cfg.DataBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Float64("per_diem_rate", cfg.PerDiemRate),
		zap.String("timezone", cfg.Timezone),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer shutdown(context.Background())
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	summaryCache := cache.New[ledger.Summary](cfg.CacheTTL)
	defer summaryCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Persistence ---
	var store port.TripStore
	switch cfg.DataBackend {
	case config.BackendMemory:
		logger.Info("using in-memory trip store")
		store = memstore.New(logger)
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer db.Close()
		store = db
	default:
		logger.Info("using dashboard server as data backend", zap.String("backend_url", cfg.BackendURL))
		tokenCache := cache.New[string](cfg.CacheTTL)
		defer tokenCache.Close()
		store = backend.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.BackendURL,
			resilience.NewCircuitBreaker("backend", logger),
			resilienceCfg,
			tokenCache,
			metrics,
			logger,
		)
	}

	// --- Notifications ---
	hub := notify.NewHub(logger, cfg.AllowedOrigins()...)
	notifiers := []port.Notifier{notify.NewLog(logger), hub}
	if cfg.AMQPURL != "" {
		publisher, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.Warn("amqp notifications disabled", zap.Error(err))
		} else {
			defer publisher.Close()
			notifiers = append(notifiers, publisher)
			logger.Info("amqp notifications enabled", zap.String("exchange", cfg.AMQPExchange))
		}
	}

	// --- Services ---
	model := ledger.NewModel(domain.MoneyFromFloat(cfg.PerDiemRate), ledger.WithLocation(cfg.Location()))
	tripSvc := service.NewTripService(store, model, notify.NewFanout(metrics, notifiers...), summaryCache, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(tripSvc, hub, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Initial load; readyz reports ready once it lands.
	g.Go(func() error {
		err := resilience.RetryWithBackoff(gCtx, resilienceCfg, func() error {
			_, err := tripSvc.Sync(gCtx, service.ResyncStartup)
			return err
		})
		if err != nil && gCtx.Err() == nil {
			logger.Error("startup sync failed, serving empty ledger until POST /v1/trips/sync", zap.Error(err))
		}
		return nil
	})

	// --- Graceful shutdown ---
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
