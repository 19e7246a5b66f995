package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ResultQueue hands scored results to the result worker through a Redis list.
type ResultQueue struct {
	rdb *redis.Client
}

func NewResultQueue(rdb *redis.Client) *ResultQueue {
	return &ResultQueue{rdb: rdb}
}

// SubmitResult enqueues r for persistence.
func (q *ResultQueue) SubmitResult(ctx context.Context, r model.Result) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue result: %w", err)
	}
	return nil
}

// ViolationQueue records counted violations for the violation worker and
// publishes them live on the exam's monitor channel.
type ViolationQueue struct {
	rdb *redis.Client
}

func NewViolationQueue(rdb *redis.Client) *ViolationQueue {
	return &ViolationQueue{rdb: rdb}
}

func (q *ViolationQueue) RecordViolation(ctx context.Context, v model.ViolationEvent) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	pipe := q.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, raw)
	pipe.Publish(ctx, config.CacheKey.ExamMonitorChannel(v.ExamName), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue violation: %w", err)
	}
	return nil
}
