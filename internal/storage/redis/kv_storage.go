// Package redis stores the portal's client state in Redis, one string key
// per entry under a configurable prefix.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
)

const scanBatch = 100

// KVStorage implements interfaces.KeyValueStorage over a Redis client.
type KVStorage struct {
	rdb    *redis.Client
	prefix string
	logger *common.Logger
}

// NewKVStorage wraps rdb, namespacing every key with prefix.
func NewKVStorage(rdb *redis.Client, prefix string, logger *common.Logger) *KVStorage {
	return &KVStorage{rdb: rdb, prefix: prefix, logger: logger}
}

func (s *KVStorage) key(k string) string { return s.prefix + k }

// Get retrieves a value by key. A missing key wraps interfaces.ErrNotFound.
func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%w: %s", interfaces.ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Set stores a key-value pair without expiry. Freshness is judged by the
// cache from the stored timestamp, not by Redis.
func (s *KVStorage) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key-value pair.
func (s *KVStorage) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// GetAll returns every pair under the prefix, with the prefix stripped.
func (s *KVStorage) GetAll(ctx context.Context) (map[string]string, error) {
	result := make(map[string]string)
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		val, err := s.rdb.Get(ctx, full).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get key %s: %w", full, err)
		}
		result[strings.TrimPrefix(full, s.prefix)] = val
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	return result, nil
}

// Manager implements interfaces.StorageManager for Redis.
type Manager struct {
	rdb *redis.Client
	kv  *KVStorage
}

// NewManager connects to Redis and verifies the connection with a PING.
func NewManager(ctx context.Context, logger *common.Logger, cfg *config.RedisConfig) (*Manager, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Debug().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Redis storage manager initialized")

	return &Manager{rdb: rdb, kv: NewKVStorage(rdb, cfg.Prefix, logger)}, nil
}

// KeyValueStorage returns the KeyValue storage interface.
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage { return m.kv }

// Backend names the storage backend.
func (m *Manager) Backend() string { return "redis" }

// Close closes the Redis client.
func (m *Manager) Close() error { return m.rdb.Close() }
