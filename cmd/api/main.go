package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callcapture_backend/internal/calls"
	"callcapture_backend/internal/calls/service"
	"callcapture_backend/platform/events"
	apphttp "callcapture_backend/internal/http"
	"callcapture_backend/internal/http/router"
	"callcapture_backend/internal/telephony"
	"callcapture_backend/internal/usage"
	"callcapture_backend/platform/config"
	"callcapture_backend/platform/db"
	"callcapture_backend/platform/logger"
	"callcapture_backend/platform/metrics"
	"callcapture_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	m := metrics.New()

	// Event bus for decoupled communication between modules; the event
	// recorder is the pipeline's observability subscriber.
	eventBus := events.NewInMemoryBus(log)
	calls.NewEventRecorder(m, log).RegisterHandlers(eventBus)

	// Shared validator instance for dependency injection
	val := validator.New()

	provider := telephony.NewClient(cfg, log)

	usageCounter, closeUsage := initUsageCounter(cfg, log)
	if closeUsage != nil {
		defer closeUsage()
	}

	// ========================================================================
	// Domain Modules
	// ========================================================================

	callsModule, err := calls.NewModule(pool, provider, provider, usageCounter, eventBus, m, cfg, val, log)
	if err != nil {
		log.Error("failed to initialize calls module", "error", err)
		panic("failed to initialize calls module: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			callsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initUsageCounter is best effort: without Redis the pipeline still
// runs, it just stops tracking monthly volume.
func initUsageCounter(cfg config.UsageConfig, log *logger.Logger) (service.UsageCounter, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; monthly usage tracking disabled")
		return nil, nil
	}

	counter, err := usage.New(cfg)
	if err != nil {
		log.Error("failed to initialize usage counter", "error", err)
		return nil, nil
	}

	return counter, func() {
		_ = counter.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%s: %w", name, lastErr)
}
