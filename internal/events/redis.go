package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisQueue is the Redis list friendship events are pushed onto.
const DefaultRedisQueue = "friends_events"

// ListPusher is the subset of the Redis client used by RedisQueue.
type ListPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisQueue appends events as JSON to a Redis list for asynchronous consumers.
type RedisQueue struct {
	client ListPusher
	queue  string
}

// NewRedisQueue constructs a queue sink. An empty queue name uses DefaultRedisQueue.
func NewRedisQueue(client ListPusher, queue string) *RedisQueue {
	if queue == "" {
		queue = DefaultRedisQueue
	}
	return &RedisQueue{client: client, queue: queue}
}

// ConnectRedis creates a client and checks the server answers.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Emit pushes event onto the queue.
func (q *RedisQueue) Emit(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := q.client.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("rpush to redis list %q: %w", q.queue, err)
	}
	return nil
}
