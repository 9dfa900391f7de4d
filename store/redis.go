package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using a Redis Hash.
//
// Records are stored in a Redis Hash where:
//   - Key: configurable (default: "evolve:records")
//   - Field: store key ("name@version")
//   - Value: encoded record
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := store.NewRedisStore(client, store.WithKey("myapp:schemas"))
//	defer s.Close()
type RedisStore struct {
	client redis.UniversalClient
	key    string
	mu     sync.RWMutex
	closed bool
}

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithKey sets a custom hash key (default: "evolve:records").
func WithKey(key string) RedisOption {
	return func(s *RedisStore) {
		s.key = key
	}
}

// NewRedisStore creates a new Redis-based store.
// The client is owned by the caller and is not closed by Close.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		key:    "evolve:records",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Save writes value under key.
func (s *RedisStore) Save(ctx context.Context, key string, value []byte) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	if err := s.client.HSet(ctx, s.key, key, value).Err(); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Load returns the value stored under key.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	data, err := s.client.HGet(ctx, s.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return data, nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	if err := s.client.HDel(ctx, s.key, key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns the sorted keys starting with prefix.
func (s *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	fields, err := s.client.HKeys(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	keys := fields[:0]
	for _, f := range fields {
		if strings.HasPrefix(f, prefix) {
			keys = append(keys, f)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Compile-time check that RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
