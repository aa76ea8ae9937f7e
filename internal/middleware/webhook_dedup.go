package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"paysync/internal/payment"
)

// EventDeduper tracks processed gateway event IDs.
type EventDeduper interface {
	// Seen marks id as processed and reports whether it already was.
	Seen(ctx context.Context, id string) (bool, error)
	// Forget releases id so a redelivery is processed again.
	Forget(ctx context.Context, id string) error
}

type redisEventDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisEventDeduper) Seen(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+":"+id, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// false => already exists => duplicate
	return !ok, nil
}

func (d *redisEventDeduper) Forget(ctx context.Context, id string) error {
	return d.client.Del(ctx, d.prefix+":"+id).Err()
}

type memoryEventDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryEventDeduper(ttl time.Duration) *memoryEventDeduper {
	return &memoryEventDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: time.Now().Add(ttl),
	}
}

func (d *memoryEventDeduper) Seen(_ context.Context, id string) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[id]; ok && exp.After(now) {
		return true, nil
	}

	d.seen[id] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, k)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}

	return false, nil
}

func (d *memoryEventDeduper) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
	return nil
}

// NewEventDeduper builds a Redis deduper and falls back to in-memory on failure.
func NewEventDeduper(addr, pass string, db int, ttl time.Duration) (EventDeduper, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if addr == "" {
		return newMemoryEventDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return newMemoryEventDeduper(ttl), err
	}

	return &redisEventDeduper{
		client: client,
		prefix: "stripe:event",
		ttl:    ttl,
	}, nil
}

// EventSourceFunc returns the request's gateway event source, possibly nil.
type EventSourceFunc func(c echo.Context) *payment.EventSource

// WebhookEventDedup acknowledges redelivered gateway events without running
// the handler. A delivery whose handler fails is forgotten so the gateway's
// retry gets processed.
func WebhookEventDedup(deduper EventDeduper, source EventSourceFunc, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deduper == nil || source == nil {
				return next(c)
			}
			ev := source(c).Event()
			if ev == nil || ev.ID == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			isDuplicate, err := deduper.Seen(ctx, ev.ID)
			if err != nil {
				logger.Warn("event dedup unavailable", zap.String("event_id", ev.ID), zap.Error(err))
				return next(c)
			}
			if isDuplicate {
				logger.Info("duplicate event acknowledged", zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
				// The gateway only needs a 2xx response to stop retries.
				return c.NoContent(http.StatusOK)
			}

			err = next(c)
			if err != nil || c.Response().Status >= http.StatusInternalServerError {
				if ferr := deduper.Forget(context.WithoutCancel(ctx), ev.ID); ferr != nil {
					logger.Warn("event dedup release failed", zap.String("event_id", ev.ID), zap.Error(ferr))
				}
			}
			return err
		}
	}
}
