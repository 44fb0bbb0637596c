package scheduler

import (
	"context"
	"fmt"
	"time"

	"callcapture_backend/platform/config"
	"callcapture_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ReconcileDispatcher enqueues a reconcile task on a fixed interval.
// Asynq deduplicates nothing here; intervals are long relative to a
// pass, and the pass itself is idempotent, so overlap is harmless.
type ReconcileDispatcher struct {
	client   *asynq.Client
	queue    string
	interval time.Duration
	log      *logger.Logger
}

func NewReconcileDispatcher(cfg config.SchedulerConfig, log *logger.Logger) (*ReconcileDispatcher, error) {
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

	interval := cfg.GetReconcileInterval()
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &ReconcileDispatcher{
		client:   asynq.NewClient(opt),
		queue:    queue,
		interval: interval,
		log:      log,
	}, nil
}

func (d *ReconcileDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *ReconcileDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		task, err := NewReconcileStaleTask(ReconcileStalePayload{TriggeredAt: time.Now().UTC()})
		if err != nil {
			d.log.Warn("build reconcile task failed", "error", err)
			continue
		}

		if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue(d.queue)); err != nil {
			d.log.Warn("enqueue reconcile task failed", "error", err)
		}
	}
}
