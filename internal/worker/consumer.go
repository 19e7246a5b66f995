package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
)

const (
	PollTimeout       = 1 * time.Second // Must be >= 1s to satisfy Redis
	DefaultBatchSize  = 50
	DefaultFlushEvery = 2 * time.Second

	redisRetryPause = 3 * time.Second
	shutdownFlush   = 5 * time.Second
	deadLetterCap   = 1000
)

// requeuePause backs off after a requeue so a database outage does not
// spin the loop.
var requeuePause = 2 * time.Second

// listQueue is the Redis list surface a consumer needs.
type listQueue interface {
	// Pop waits up to timeout for the head of key and returns redis.Nil
	// when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration, key string) (string, error)
	// Push appends values to the tail of key in one round trip.
	Push(ctx context.Context, key string, values ...[]byte) error
	// Park prepends value to key and trims key to its newest limit entries.
	Park(ctx context.Context, key, value string, limit int64) error
}

type redisList struct {
	rdb *redis.Client
}

func (l redisList) Pop(ctx context.Context, timeout time.Duration, key string) (string, error) {
	result, err := l.rdb.BLPop(ctx, timeout, key).Result()
	if err != nil {
		return "", err
	}
	if len(result) < 2 {
		return "", redis.Nil
	}
	return result[1], nil
}

func (l redisList) Push(ctx context.Context, key string, values ...[]byte) error {
	pipe := l.rdb.Pipeline()
	for _, v := range values {
		pipe.RPush(ctx, key, v)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (l redisList) Park(ctx context.Context, key, value string, limit int64) error {
	pipe := l.rdb.Pipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, limit-1)
	_, err := pipe.Exec(ctx)
	return err
}

// consumer drains one Redis list in batches. A batch goes through bulk
// first; when that fails every item is retried through single, and items
// that still fail are pushed back onto the list.
type consumer[T any] struct {
	list       listQueue
	queue      string
	size       int
	flushEvery time.Duration
	log        zerolog.Logger

	bulk   func(ctx context.Context, batch []T) error
	single func(ctx context.Context, item T) error
	// after runs on the items that reached the database. Optional.
	after func(ctx context.Context, batch []T)
}

func (c *consumer[T]) run(ctx context.Context) {
	if c.size <= 0 {
		c.size = DefaultBatchSize
	}
	if c.flushEvery <= 0 {
		c.flushEvery = DefaultFlushEvery
	}
	c.log.Info().Str("queue", c.queue).Int("batch_size", c.size).Msg("Worker started")

	buffer := make([]T, 0, c.size)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= c.size || time.Since(lastFlush) >= c.flushEvery) {
			c.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			c.shutdown(buffer)
			return
		default:
		}

		raw, err := c.list.Pop(ctx, PollTimeout, c.queue)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			c.log.Error().Err(err).Msg("Redis connection error, sleeping")
			sleepCtx(ctx, redisRetryPause)
			continue
		}

		var item T
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			c.deadLetter(ctx, raw, err)
			continue
		}
		buffer = append(buffer, item)
	}
}

func (c *consumer[T]) flushSafe(ctx context.Context, batch []T) {
	if len(batch) == 0 {
		return
	}

	if err := c.bulk(ctx, batch); err != nil {
		c.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk write failed, attempting row-by-row recovery")

		var stored, failed []T
		for _, item := range batch {
			if err := c.single(ctx, item); err != nil {
				c.log.Error().Err(err).Msg("Row write failed, requeueing")
				failed = append(failed, item)
				continue
			}
			stored = append(stored, item)
		}
		if len(stored) > 0 && c.after != nil {
			c.after(ctx, stored)
		}
		if len(failed) > 0 {
			c.requeue(ctx, failed)
		}
		return
	}

	if c.after != nil {
		c.after(ctx, batch)
	}
}

func (c *consumer[T]) requeue(ctx context.Context, items []T) {
	values := make([][]byte, 0, len(items))
	for _, item := range items {
		data, _ := json.Marshal(item)
		values = append(values, data)
	}
	if err := c.list.Push(ctx, c.queue, values...); err != nil {
		c.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	c.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	sleepCtx(ctx, requeuePause)
}

// deadLetter parks a payload that can never decode, keeping the newest
// deadLetterCap entries.
func (c *consumer[T]) deadLetter(ctx context.Context, raw string, cause error) {
	key := config.WorkerKey.DeadLetter(c.queue)
	c.log.Error().Err(cause).Str("data", raw).Str("dead_letter", key).Msg("Parking malformed payload")

	if err := c.list.Park(ctx, key, raw, deadLetterCap); err != nil {
		c.log.Error().Err(err).Msg("Failed to park malformed payload")
	}
}

func (c *consumer[T]) shutdown(buffer []T) {
	c.log.Info().Int("pending", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlush)
	defer cancel()
	c.flushSafe(ctx, buffer)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
