package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/voice-agent/internal/config"
	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/internal/idempotency"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available; duplicate cache disabled", "error", err)
		return nil
	}
	return client
}

// Persistence bundles the conversation store with the idempotency guard
// that shares its database.
type Persistence struct {
	Store conversation.Store
	Guard idempotency.Guard
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// Close releases pooled connections.
func (p *Persistence) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
	if p.Redis != nil {
		_ = p.Redis.Close()
	}
}

// BuildPersistence connects to Postgres when DATABASE_URL is set and falls
// back to the in-memory store otherwise. A reachable Redis adds the
// duplicate pre-check cache in front of either guard.
func BuildPersistence(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Persistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	p := &Persistence{}
	var guard idempotency.Guard
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		p.Pool = pool
		p.Store = conversation.NewPostgresStore(pool)
		guard = idempotency.NewPostgresGuard(pool)
		logger.Info("conversation store: postgres")
	} else {
		mem := conversation.NewMemoryStore()
		p.Store = mem
		guard = mem.Guard()
		logger.Warn("DATABASE_URL not set; using in-memory conversation store")
	}

	p.Redis = BuildRedisClient(ctx, cfg, logger, true)
	if p.Redis != nil {
		p.Guard = idempotency.NewCachedGuard(guard, p.Redis, cfg.DuplicateCacheTTL, logger)
		logger.Info("duplicate webhook cache enabled", "ttl", cfg.DuplicateCacheTTL)
	} else {
		p.Guard = guard
	}
	return p, nil
}
