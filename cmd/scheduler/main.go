package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callcapture_backend/internal/calls"
	"callcapture_backend/internal/calls/repository"
	"callcapture_backend/internal/calls/service"
	"callcapture_backend/platform/events"
	"callcapture_backend/internal/messaging"
	"callcapture_backend/internal/scheduler"
	"callcapture_backend/internal/telephony"
	"callcapture_backend/internal/usage"
	"callcapture_backend/platform/config"
	"callcapture_backend/platform/db"
	"callcapture_backend/platform/logger"
	"callcapture_backend/platform/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	m := metrics.New()

	eventBus := events.NewInMemoryBus(log)
	calls.NewEventRecorder(m, log).RegisterHandlers(eventBus)

	renderer, err := messaging.NewRenderer()
	if err != nil {
		log.Error("failed to load message templates", "error", err)
		panic("failed to load message templates: " + err.Error())
	}

	var usageCounter service.UsageCounter
	if cfg.GetRedisURL() != "" {
		counter, err := usage.New(cfg)
		if err != nil {
			log.Error("failed to initialize usage counter", "error", err)
		} else {
			defer func() { _ = counter.Close() }()
			usageCounter = counter
		}
	}

	provider := telephony.NewClient(cfg, log)
	callsService := service.New(repository.New(pool), provider, provider, renderer, usageCounter, eventBus, m, cfg, log)

	dispatcher, err := scheduler.NewReconcileDispatcher(cfg, log)
	if err != nil {
		log.Error("failed to initialize reconcile dispatcher", "error", err)
		panic("failed to initialize reconcile dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()
	go dispatcher.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, callsService, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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

	return errors.New(name + ": " + lastErr.Error())
}
