package scheduler

import (
	"context"
	"fmt"

	"callcapture_backend/internal/calls/service"
	"callcapture_backend/platform/config"
	"callcapture_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	calls  *service.Service
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, calls *service.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		calls:  calls,
		log:    log,
	}

	mux.HandleFunc(TaskReconcileStale, w.handleReconcileStale)

	return w, nil
}

func (w *Worker) handleReconcileStale(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReconcileStalePayload(task)
	if err != nil {
		return err
	}

	summary, err := w.calls.ReconcileStale(ctx)
	if err != nil {
		return err
	}

	if summary.Scanned > 0 {
		w.log.Info("reconcile task processed",
			"triggered_at", payload.TriggeredAt,
			"scanned", summary.Scanned,
			"missed", summary.Missed,
		)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
