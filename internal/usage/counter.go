// Package usage tracks each client's rolling monthly message volume in
// Redis. The counter feeds plan enforcement and billing reports; losing
// an increment costs accuracy, not correctness, so failures here are
// logged by callers and never block the pipeline.
package usage

import (
	"context"
	"fmt"
	"time"

	"callcapture_backend/platform/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Counters live about two months so the previous period stays readable
// for end-of-month reporting before expiring.
const counterTTL = 62 * 24 * time.Hour

// Counter increments per-client monthly usage keys.
type Counter struct {
	rdb *redis.Client
}

// New connects to Redis from the usage configuration.
func New(cfg config.UsageConfig) (*Counter, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() && opt.TLSConfig != nil {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return &Counter{rdb: redis.NewClient(opt)}, nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(rdb *redis.Client) *Counter {
	return &Counter{rdb: rdb}
}

// Key returns the counter key for a client and month.
func Key(clientID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("usage:sms:%s:%s", clientID, at.UTC().Format("2006-01"))
}

// IncrementMonthly bumps the client's counter for the month containing
// at, and returns the new value. The TTL is set only when the key is
// created so repeated increments never extend a counter's life.
func (c *Counter) IncrementMonthly(ctx context.Context, clientID uuid.UUID, at time.Time) (int64, error) {
	key := Key(clientID, at)

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if err := c.rdb.ExpireNX(ctx, key, counterTTL).Err(); err != nil {
		return count, fmt.Errorf("expire %s: %w", key, err)
	}
	return count, nil
}

// MonthlyCount reads the client's counter for the month containing at.
// A missing key reads as zero.
func (c *Counter) MonthlyCount(ctx context.Context, clientID uuid.UUID, at time.Time) (int64, error) {
	count, err := c.rdb.Get(ctx, Key(clientID, at)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Close releases the Redis connection.
func (c *Counter) Close() error {
	return c.rdb.Close()
}
