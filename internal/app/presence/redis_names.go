package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultNameTTL bounds how long a cached name is trusted.
	DefaultNameTTL = 24 * time.Hour

	nameKeyPrefix = "pongrt:user:name:"
)

// RedisNameStore shares the name cache between service instances.
type RedisNameStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisNameStore wraps client. A non-positive ttl uses DefaultNameTTL.
func NewRedisNameStore(client *redis.Client, ttl time.Duration) *RedisNameStore {
	if ttl <= 0 {
		ttl = DefaultNameTTL
	}
	return &RedisNameStore{client: client, ttl: ttl}
}

func nameKey(id int64) string {
	return nameKeyPrefix + strconv.FormatInt(id, 10)
}

// GetName implements NameStore.
func (s *RedisNameStore) GetName(ctx context.Context, id int64) (string, bool, error) {
	name, err := s.client.Get(ctx, nameKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get name %d: %w", id, err)
	}
	return name, true, nil
}

// GetNames implements NameStore with a single MGET.
func (s *RedisNameStore) GetNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = nameKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget %d names: %w", len(ids), err)
	}
	for i, v := range values {
		if name, ok := v.(string); ok {
			out[ids[i]] = name
		}
	}
	return out, nil
}

// SetName implements NameStore.
func (s *RedisNameStore) SetName(ctx context.Context, id int64, name string) error {
	if err := s.client.Set(ctx, nameKey(id), name, s.ttl).Err(); err != nil {
		return fmt.Errorf("set name %d: %w", id, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisNameStore) Close() error {
	return s.client.Close()
}
