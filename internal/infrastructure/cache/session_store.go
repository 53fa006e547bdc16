package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/stockledger/backend/internal/domain/workflow"
)

const sessionKeyPrefix = "workflow:session:"

// RedisSessionStore keeps each operator's open session as one JSON value
// under <prefix>workflow:session:<operator id>
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore creates a session store on an existing client
func NewRedisSessionStore(client *redis.Client, prefix string) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: prefix + sessionKeyPrefix}
}

func (s *RedisSessionStore) key(operatorID string) string {
	return s.prefix + operatorID
}

// Load returns the operator's session or workflow.ErrNoSession
func (s *RedisSessionStore) Load(ctx context.Context, operatorID string) (*workflow.Session, error) {
	raw, err := s.client.Get(ctx, s.key(operatorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, workflow.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decodeSession(raw)
}

// Save overwrites the operator's stored session
func (s *RedisSessionStore) Save(ctx context.Context, sess *workflow.Session) error {
	if sess.OperatorID == "" {
		return workflow.ErrNoOperator
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.OperatorID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes the operator's stored session
func (s *RedisSessionStore) Delete(ctx context.Context, operatorID string) error {
	if err := s.client.Del(ctx, s.key(operatorID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List scans every stored session. Keys deleted during the scan are skipped.
func (s *RedisSessionStore) List(ctx context.Context) ([]*workflow.Session, error) {
	var out []*workflow.Session
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		sess, err := decodeSession(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return out, nil
}

// InMemorySessionStore keeps sessions in process memory. It stores JSON
// copies so callers cannot mutate what was saved.
type InMemorySessionStore struct {
	mu  sync.Mutex
	raw map[string][]byte
}

// NewInMemorySessionStore creates an empty store
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{raw: make(map[string][]byte)}
}

func (s *InMemorySessionStore) Load(_ context.Context, operatorID string) (*workflow.Session, error) {
	s.mu.Lock()
	raw, ok := s.raw[operatorID]
	s.mu.Unlock()
	if !ok {
		return nil, workflow.ErrNoSession
	}
	return decodeSession(raw)
}

func (s *InMemorySessionStore) Save(_ context.Context, sess *workflow.Session) error {
	if sess.OperatorID == "" {
		return workflow.ErrNoOperator
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	s.mu.Lock()
	s.raw[sess.OperatorID] = raw
	s.mu.Unlock()
	return nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, operatorID string) error {
	s.mu.Lock()
	delete(s.raw, operatorID)
	s.mu.Unlock()
	return nil
}

// List returns the sessions ordered by operator id
func (s *InMemorySessionStore) List(_ context.Context) ([]*workflow.Session, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.raw))
	for id := range s.raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	raws := make([][]byte, 0, len(ids))
	for _, id := range ids {
		raws = append(raws, s.raw[id])
	}
	s.mu.Unlock()

	out := make([]*workflow.Session, 0, len(raws))
	for _, raw := range raws {
		sess, err := decodeSession(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func decodeSession(raw []byte) (*workflow.Session, error) {
	var sess workflow.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

var (
	_ workflow.SessionStore = (*RedisSessionStore)(nil)
	_ workflow.SessionStore = (*InMemorySessionStore)(nil)
)
