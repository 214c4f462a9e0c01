package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// notificationKey is the redis list holding queued transport deliveries
const notificationKey = "adrewards:notifications"

// RedisQueue is a fast, in-memory delivery queue for outbound transport
// notifications. Unlike the durable jobs table, losing an entry here costs a
// chat message, never money, so redis semantics are acceptable.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisClient creates a redis client from a URL
func NewRedisClient(url, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DB = db

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisQueue creates a notification queue on the given client
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, key: notificationKey}
}

// Push enqueues one payload
func (r *RedisQueue) Push(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal queue payload: %w", err)
	}
	if err := r.client.LPush(ctx, r.key, body).Err(); err != nil {
		return fmt.Errorf("failed to push to queue: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the next payload. Returns nil bytes when the
// queue stayed empty.
func (r *RedisQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	result, err := r.client.BRPop(ctx, timeout, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}
	// BRPop returns [key, value]
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

// Close closes the underlying client
func (r *RedisQueue) Close() error {
	return r.client.Close()
}
