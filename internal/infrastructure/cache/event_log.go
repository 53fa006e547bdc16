package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/stockledger/backend/internal/domain/integration"
)

const eventLogKeyPrefix = "webhook:events:"

// RedisEventLog keeps the most recent webhook events per channel in a
// capped Redis list, newest first
type RedisEventLog struct {
	client   *redis.Client
	prefix   string
	capacity int
}

// NewRedisEventLog creates an event log on an existing client
func NewRedisEventLog(client *redis.Client, prefix string, capacity int) *RedisEventLog {
	if capacity <= 0 {
		capacity = integration.DefaultEventLogCapacity
	}
	return &RedisEventLog{client: client, prefix: prefix + eventLogKeyPrefix, capacity: capacity}
}

// Append pushes the event and trims the list to capacity in one round trip
func (l *RedisEventLog) Append(ctx context.Context, event integration.WebhookEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode webhook event: %w", err)
	}
	key := l.prefix + string(event.Channel)
	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, int64(l.capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append webhook event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first
func (l *RedisEventLog) Recent(ctx context.Context, channel integration.ChannelCode, limit int) ([]integration.WebhookEvent, error) {
	if limit <= 0 || limit > l.capacity {
		limit = l.capacity
	}
	raws, err := l.client.LRange(ctx, l.prefix+string(channel), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook events: %w", err)
	}
	out := make([]integration.WebhookEvent, 0, len(raws))
	for _, raw := range raws {
		var ev integration.WebhookEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode webhook event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// InMemoryEventLog is the single-process variant of RedisEventLog
type InMemoryEventLog struct {
	mu       sync.Mutex
	capacity int
	events   map[integration.ChannelCode][]integration.WebhookEvent
}

// NewInMemoryEventLog creates an empty log
func NewInMemoryEventLog(capacity int) *InMemoryEventLog {
	if capacity <= 0 {
		capacity = integration.DefaultEventLogCapacity
	}
	return &InMemoryEventLog{
		capacity: capacity,
		events:   make(map[integration.ChannelCode][]integration.WebhookEvent),
	}
}

func (l *InMemoryEventLog) Append(_ context.Context, event integration.WebhookEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := append([]integration.WebhookEvent{event}, l.events[event.Channel]...)
	if len(list) > l.capacity {
		list = list[:l.capacity]
	}
	l.events[event.Channel] = list
	return nil
}

func (l *InMemoryEventLog) Recent(_ context.Context, channel integration.ChannelCode, limit int) ([]integration.WebhookEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.events[channel]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	return slices.Clone(list[:limit]), nil
}

var (
	_ integration.EventLog = (*RedisEventLog)(nil)
	_ integration.EventLog = (*InMemoryEventLog)(nil)
)
