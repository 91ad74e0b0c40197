package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanCount = 100

type (
	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		// URL takes precedence over Addr/Password/DB when set.
		URL string
	}

	RedisBackend struct {
		client redis.UniversalClient
	}
)

func NewRedisBackend(config RedisConfig) (*RedisBackend, error) {
	if config.URL != "" {
		opt, err := redis.ParseURL(config.URL)
		if err != nil {
			return nil, fmt.Errorf("error while parsing redis url: %w", err)
		}

		return NewRedisBackendWithClient(redis.NewClient(opt)), nil
	}

	return NewRedisBackendWithClient(redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})), nil
}

func NewRedisBackendWithClient(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()

	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}

	if err != nil {
		return "", err
	}

	return val, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisBackend) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (r *RedisBackend) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return NoExpiry, err
	}

	// redis reports -2 for missing keys and -1 for keys without expiry
	if ttl < 0 {
		return NoExpiry, nil
	}

	return ttl, nil
}

// Keys walks the keyspace with SCAN instead of KEYS to avoid blocking the server.
func (r *RedisBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)
	iter := r.client.Scan(ctx, 0, pattern, scanCount).Iterator()

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
