package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisHistoryKey = "nfd:autoupdate:history"

// RedisStore implements the Store interface using a capped Redis list.
type RedisStore struct {
	client *redis.Client
	size   int
}

// NewRedisStore creates a new RedisStore connected to the given Redis URL.
// The URL is parsed with redis.ParseURL so it supports redis:// and rediss:// schemes.
func NewRedisStore(url string, size int) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Verify connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return newRedisStore(client, size), nil
}

func newRedisStore(client *redis.Client, size int) *RedisStore {
	if size < 1 {
		size = DefaultSize
	}
	return &RedisStore{client: client, size: size}
}

// Append pushes the record onto the head of the list and trims the tail in
// one transaction.
func (r *RedisStore) Append(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling record %s: %w", rec.RunID, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, redisHistoryKey, data)
		pipe.LTrim(ctx, redisHistoryKey, 0, int64(r.size-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis LPUSH %s: %w", redisHistoryKey, err)
	}
	return nil
}

// Recent returns up to n records, newest first. Entries that fail to decode
// are skipped.
func (r *RedisStore) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 || n > r.size {
		n = r.size
	}
	vals, err := r.client.LRange(ctx, redisHistoryKey, 0, int64(n-1)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE %s: %w", redisHistoryKey, err)
	}

	out := make([]Record, 0, len(vals))
	for _, v := range vals {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close closes the Redis client connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
