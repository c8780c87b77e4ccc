package routing

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"voice-routing/pkg/logger"
	"voice-routing/pkg/utils"
)

// RedisCallGuard holds a per-call in-flight lock in Redis so that a concurrent
// redelivery of the same webhook is rejected instead of double-booking.
//
// It only covers overlapping deliveries. Once a run releases the lock the call can
// be routed again. Redis errors fail open: routing proceeds unguarded.
type RedisCallGuard struct {
	RDB *redis.Client
	TTL time.Duration

	// Prefix defaults to "routing:call:".
	Prefix string
}

func NewRedisCallGuard(rdb *redis.Client, ttl time.Duration) *RedisCallGuard {
	return &RedisCallGuard{RDB: rdb, TTL: ttl}
}

func (g *RedisCallGuard) key(callID string) string {
	p := g.Prefix
	if p == "" {
		p = "routing:call:"
	}
	return p + callID
}

func (g *RedisCallGuard) Acquire(ctx context.Context, callID string) (func(), error) {
	key := g.key(callID)
	token, ok, err := utils.AcquireInFlight(ctx, g.RDB, key, g.TTL)
	if err != nil {
		logger.From(ctx).Warn("routing: call guard unavailable, continuing unguarded", "err", err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrDuplicateDelivery
	}

	return func() {
		// The request context may already be done; release on a detached one.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := utils.ReleaseInFlight(rctx, g.RDB, key, token); err != nil {
			logger.From(ctx).Warn("routing: call guard release failed", "err", err)
		}
	}, nil
}

// MemoryCallGuard is a process-local CallGuard for tests and single-instance runs.
type MemoryCallGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewMemoryCallGuard() *MemoryCallGuard {
	return &MemoryCallGuard{inFlight: map[string]struct{}{}}
}

func (g *MemoryCallGuard) Acquire(ctx context.Context, callID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.inFlight[callID]; held {
		return nil, ErrDuplicateDelivery
	}
	g.inFlight[callID] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.inFlight, callID)
		g.mu.Unlock()
	}, nil
}
