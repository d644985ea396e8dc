package queue

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
)

// RedisQueue implements Publisher and Consumer on a Redis list. Receive
// moves the entry onto a per-consumer processing list (BLMOVE) and Ack
// removes it, so a worker that dies mid-pipeline leaves the entry behind
// for Recover to requeue. That gives at-least-once delivery; the pipeline
// is not idempotent under redelivery, which is a documented gap.
type RedisQueue struct {
	rdb        *redis.Client
	key        string
	processing string
}

// NewRedisQueue connects to Redis. The consumer name scopes the processing
// list; it should be stable across restarts of the same worker instance
// (the hostname is a good default).
func NewRedisQueue(addr, name, consumer string) *RedisQueue {
	if consumer == "" {
		consumer, _ = os.Hostname()
	}
	return &RedisQueue{
		rdb:        redis.NewClient(&redis.Options{Addr: addr}),
		key:        name,
		processing: fmt.Sprintf("%s:processing:%s", name, consumer),
	}
}

func (q *RedisQueue) Publish(ctx context.Context, payload []byte) error {
	if err := q.rdb.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return nil
}

func (q *RedisQueue) Receive(ctx context.Context) (Message, error) {
	body, err := q.rdb.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", 0).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Message{}, ctx.Err()
		}
		return Message{}, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return Message{Body: []byte(body)}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, msg Message) error {
	if err := q.rdb.LRem(ctx, q.processing, 1, string(msg.Body)).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return nil
}

// Recover requeues entries a previous run of this consumer left on its
// processing list. Call once at worker startup, before Receive.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	requeued := 0
	for {
		_, err := q.rdb.LMove(ctx, q.processing, q.key, "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			return requeued, nil
		}
		if err != nil {
			return requeued, fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
		requeued++
	}
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
