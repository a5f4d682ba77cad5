package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

// Redis persists actor state as JSON strings in redis. Wake deadlines live
// under a separate key so they can be cleared independently of the state blob.
type Redis struct {
	rdb *goredis.Client
}

// NewRedis creates a store from a URL (e.g. "redis://localhost:6379").
func NewRedis(redisURL string) (*Redis, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &Redis{rdb: goredis.NewClient(opts)}, nil
}

// Ping verifies the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) SaveJSON(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return r.rdb.Set(ctx, key, payload, 0).Err()
}

func (r *Redis) LoadJSON(ctx context.Context, key string, dest any) (bool, error) {
	payload, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) SaveWake(ctx context.Context, key string, atMillis int64) error {
	return r.rdb.Set(ctx, wakeKey(key), strconv.FormatInt(atMillis, 10), 0).Err()
}

func (r *Redis) LoadWake(ctx context.Context, key string) (int64, bool, error) {
	raw, err := r.rdb.Get(ctx, wakeKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load wake %s: %w", key, err)
	}
	at, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt wake %s: %w", key, err)
	}
	return at, true, nil
}

func (r *Redis) ClearWake(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, wakeKey(key)).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}

func wakeKey(key string) string { return key + ":wake" }
