package worker

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

var violationColumns = []string{
	"user_id", "exam_name", "signal", "violation_count", "max_violations", "escalated", "recorded_at",
}

// ViolationWorker consumes persist_violations_queue into exam_violations.
type ViolationWorker struct {
	pool *pgxpool.Pool
	c    consumer[model.ViolationEvent]
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(pool *pgxpool.Pool, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *ViolationWorker {
	w := &ViolationWorker{pool: pool}
	w.c = consumer[model.ViolationEvent]{
		list:       redisList{rdb: rdb},
		queue:      config.WorkerKey.PersistViolationsQueue,
		size:       cfg.WorkerBatchSize,
		flushEvery: cfg.WorkerFlushPeriod,
		log:        log.With().Str("component", "violation_worker").Logger(),
		bulk:       w.copyBatch,
		single:     w.insertOne,
	}
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.c.run(ctx)
}

func violationRow(v model.ViolationEvent) []interface{} {
	return []interface{}{
		v.UserID, v.ExamName, v.Signal, int32(v.ViolationCount), int32(v.MaxViolations), v.Escalated, v.RecordedAt,
	}
}

func (w *ViolationWorker) copyBatch(ctx context.Context, batch []model.ViolationEvent) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, v := range batch {
		rows = append(rows, violationRow(v))
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"exam_violations"},
		violationColumns,
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *ViolationWorker) insertOne(ctx context.Context, v model.ViolationEvent) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO exam_violations (user_id, exam_name, signal, violation_count, max_violations, escalated, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		violationRow(v)...,
	)
	return err
}
