// Package cooldown rate-limits individual commands per user. The
// authoritative ledger lives in redis so limits hold across restarts;
// an in-memory ledger takes over behind a circuit breaker when redis
// is down or not configured.
package cooldown

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/graxinc/errutil"
	"github.com/redis/go-redis/v9"
)

type Gate struct {
	c  *redis.Client
	l  *slog.Logger
	cb *circuitBreaker
	ml *memoryLedger
}

// New builds a Gate. An empty url disables redis entirely and the
// in-memory ledger serves alone.
func New(url string, l *slog.Logger) (*Gate, error) {
	g := &Gate{
		l:  l,
		cb: newCircuitBreaker(5, 30*time.Second),
		ml: newMemoryLedger(10000),
	}

	if url == "" {
		l.Info("cooldowns running without redis, using in-memory ledger only")
		return g, nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errutil.With(err)
	}
	g.c = redis.NewClient(opt)

	return g, nil
}

func (g *Gate) Close() error {
	g.ml.Close()
	if g.c == nil {
		return nil
	}
	return g.c.Close()
}

// Take attempts to claim the cooldown slot for command/userID. It
// returns (0, true) when the invocation may proceed, or the remaining
// wait and false while the cooldown is still active.
func (g *Gate) Take(ctx context.Context, command, userID string, ttl time.Duration) (time.Duration, bool) {
	if ttl <= 0 {
		return 0, true
	}

	key := fmt.Sprintf("cooldown:%s:%s", command, userID)

	if g.c == nil || !g.cb.Allow() {
		return g.ml.Take(key, ttl)
	}

	ok, err := g.c.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		g.cb.RecordFailure()
		g.l.Warn("redis cooldown check failed, falling back to memory", "error", err, "key", key)
		return g.ml.Take(key, ttl)
	}
	g.cb.RecordSuccess()

	if ok {
		return 0, true
	}

	remaining, err := g.c.PTTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		remaining = ttl
	}
	return remaining, false
}
