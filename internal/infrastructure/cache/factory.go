package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/workflow"
	"github.com/stockledger/backend/internal/infrastructure/config"
)

// StoreFactory builds the Redis-backed stores, or their in-memory
// counterparts when Redis is disabled or unreachable
type StoreFactory struct {
	redisConfig           config.RedisConfig
	client                *redis.Client
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// in-memory stores. Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithClient uses an already connected client
func WithClient(client *redis.Client) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.client = client
	}
}

// NewStoreFactory connects to Redis when enabled
func NewStoreFactory(ctx context.Context, cfg config.RedisConfig, opts ...StoreFactoryOption) (*StoreFactory, error) {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client != nil || !cfg.Enabled {
		return f, nil
	}

	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
			"Order de-duplication is not shared across instances.",
			zap.Error(err),
		)
		return f, nil
	}
	f.client = client
	f.logger.Info("connected to Redis", zap.String("addr", cfg.Addr()))
	return f, nil
}

// HasRedis reports whether a Redis client is available
func (f *StoreFactory) HasRedis() bool {
	return f.client != nil
}

// IdempotencyStore returns the processed-order store
func (f *StoreFactory) IdempotencyStore() shared.IdempotencyStore {
	if f.client == nil {
		return NewInMemoryIdempotencyStore()
	}
	return NewRedisIdempotencyStore(f.client, f.redisConfig.KeyPrefix)
}

// EventLog returns the webhook event log
func (f *StoreFactory) EventLog(capacity int) integration.EventLog {
	if f.client == nil {
		return NewInMemoryEventLog(capacity)
	}
	return NewRedisEventLog(f.client, f.redisConfig.KeyPrefix, capacity)
}

// RedisSessionStore returns the Redis session store. It fails when Redis
// is not connected, since a silent fallback would lose sessions on restart.
func (f *StoreFactory) RedisSessionStore() (workflow.SessionStore, error) {
	if f.client == nil {
		return nil, fmt.Errorf("redis session store requested but Redis is not connected")
	}
	return NewRedisSessionStore(f.client, f.redisConfig.KeyPrefix), nil
}

// Close closes the Redis client, if any
func (f *StoreFactory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
