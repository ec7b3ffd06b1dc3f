package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/voice-agent/pkg/logging"
)

const defaultCachePrefix = "voiceagent:processed:"

// CachedGuard answers duplicate pre-checks from Redis before falling back to
// the durable guard. Redis is never the arbiter: MarkProcessed always goes to
// the inner guard, and Redis outages degrade to inner lookups.
type CachedGuard struct {
	inner  Guard
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *logging.Logger
}

// NewCachedGuard wraps inner with a Redis fast path. A nil client returns a
// guard that only consults inner.
func NewCachedGuard(inner Guard, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedGuard {
	if inner == nil {
		panic("idempotency: inner guard required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedGuard{
		inner:  inner,
		client: client,
		ttl:    ttl,
		prefix: defaultCachePrefix,
		logger: logger,
	}
}

func (g *CachedGuard) key(requestID string) string {
	return g.prefix + requestID
}

func (g *CachedGuard) IsDuplicate(ctx context.Context, requestID string) (bool, error) {
	if g.client != nil {
		n, err := g.client.Exists(ctx, g.key(requestID)).Result()
		switch {
		case err != nil:
			g.logger.Warn("duplicate cache lookup failed", "error", err)
		case n > 0:
			return true, nil
		}
	}
	dup, err := g.inner.IsDuplicate(ctx, requestID)
	if err != nil {
		return false, err
	}
	if dup {
		g.Remember(ctx, requestID)
	}
	return dup, nil
}

func (g *CachedGuard) MarkProcessed(ctx context.Context, requestID string) error {
	err := g.inner.MarkProcessed(ctx, requestID)
	if err == nil || errors.Is(err, ErrDuplicate) {
		g.Remember(ctx, requestID)
	}
	return err
}

// Remember writes requestID to the cache. Errors are logged only.
func (g *CachedGuard) Remember(ctx context.Context, requestID string) {
	if g.client == nil || requestID == "" {
		return
	}
	if err := g.client.Set(ctx, g.key(requestID), "1", g.ttl).Err(); err != nil {
		g.logger.Warn("duplicate cache write failed", "error", err)
	}
}
