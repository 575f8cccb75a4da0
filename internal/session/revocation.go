package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationCache is the fast tier of the blacklist. Entries are token
// digests; Clear drops everything and the persistent tier keeps the truth.
type RevocationCache interface {
	Add(ctx context.Context, digest string, ttl time.Duration) error
	Contains(ctx context.Context, digest string) (bool, error)
	Clear(ctx context.Context) error
}

// MemoryRevocations is a process-local set safe for concurrent use.
type MemoryRevocations struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{set: make(map[string]struct{})}
}

func (m *MemoryRevocations) Add(_ context.Context, digest string, _ time.Duration) error {
	m.mu.Lock()
	m.set[digest] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *MemoryRevocations) Contains(_ context.Context, digest string) (bool, error) {
	m.mu.RLock()
	_, ok := m.set[digest]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryRevocations) Clear(context.Context) error {
	m.mu.Lock()
	m.set = make(map[string]struct{})
	m.mu.Unlock()
	return nil
}

func (m *MemoryRevocations) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.set)
}

// RedisRevocations shares the fast tier between instances. Keys expire on
// their own once the token would have expired anyway.
type RedisRevocations struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisRevocations connects from a URL such as redis://:pass@host:6379/0.
// If prefix is empty "finance:revoked:" is used.
func NewRedisRevocations(ctx context.Context, redisURL, prefix string) (*RedisRevocations, error) {
	if prefix == "" {
		prefix = "finance:revoked:"
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisRevocations{rdb: rdb, prefix: prefix}, nil
}

func (c *RedisRevocations) key(digest string) string { return c.prefix + digest }

func (c *RedisRevocations) Add(ctx context.Context, digest string, ttl time.Duration) error {
	if ttl <= 0 {
		// already expired tokens still need to be rejected until the next sweep
		ttl = time.Minute
	}
	return c.rdb.Set(ctx, c.key(digest), "1", ttl).Err()
}

func (c *RedisRevocations) Contains(ctx context.Context, digest string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(digest)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisRevocations) Clear(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.rdb.Del(ctx, batch...).Err()
	}
	return nil
}

func (c *RedisRevocations) Close() error { return c.rdb.Close() }
