package worker

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ResultWorker consumes persist_results_queue and stores submitted results
// in exam_results. Result IDs make the insert idempotent, so a requeued
// result is never stored twice.
type ResultWorker struct {
	pool *pgxpool.Pool
	c    consumer[model.Result]
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *ResultWorker {
	w := &ResultWorker{pool: pool}
	w.c = consumer[model.Result]{
		list:       redisList{rdb: rdb},
		queue:      config.WorkerKey.PersistResultsQueue,
		size:       cfg.WorkerBatchSize,
		flushEvery: cfg.WorkerFlushPeriod,
		log:        log.With().Str("component", "result_worker").Logger(),
		bulk:       w.bulkInsert,
		single:     w.insertOne,
		after:      w.clearArchivedSnapshots,
	}
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.c.run(ctx)
}

type resultColumns struct {
	ids, users, exams, remarks, reasons []string
	total, correct, incorrect, blank    []int32
	scores                              []int32
	percentages                         []float64
	submittedAt                         []time.Time
}

func columnsOf(batch []model.Result) resultColumns {
	n := len(batch)
	cols := resultColumns{
		ids: make([]string, n), users: make([]string, n), exams: make([]string, n),
		remarks: make([]string, n), reasons: make([]string, n),
		total: make([]int32, n), correct: make([]int32, n), incorrect: make([]int32, n),
		blank: make([]int32, n), scores: make([]int32, n),
		percentages: make([]float64, n), submittedAt: make([]time.Time, n),
	}
	for i, r := range batch {
		cols.ids[i] = r.ID
		cols.users[i] = r.UserID
		cols.exams[i] = r.ExamName
		cols.remarks[i] = string(r.Remark)
		cols.reasons[i] = string(r.Reason)
		cols.total[i] = int32(r.TotalQuestions)
		cols.correct[i] = int32(r.CorrectAnswers)
		cols.incorrect[i] = int32(r.IncorrectAnswers)
		cols.blank[i] = int32(r.Unanswered)
		cols.scores[i] = int32(r.Score)
		cols.percentages[i] = r.Percentage
		cols.submittedAt[i] = r.Timestamp
	}
	return cols
}

// ----------------------------------------------------------------
// BULK PostgreSQL INSERT using UNNEST
// ----------------------------------------------------------------

func (w *ResultWorker) bulkInsert(ctx context.Context, batch []model.Result) error {
	cols := columnsOf(batch)

	_, err := w.pool.Exec(ctx, `
		INSERT INTO exam_results (
			id, user_id, exam_name, total_questions, correct_answers,
			incorrect_answers, unanswered, score, percentage, remark, reason, submitted_at
		)
		SELECT
			u.id::uuid, u.user_id, u.exam_name, u.total, u.correct,
			u.incorrect, u.blank, u.score, u.percentage, u.remark, u.reason, u.submitted_at
		FROM UNNEST(
			$1::text[], $2::text[], $3::text[], $4::int[], $5::int[],
			$6::int[], $7::int[], $8::int[], $9::float8[], $10::text[], $11::text[], $12::timestamptz[]
		) AS u (id, user_id, exam_name, total, correct, incorrect, blank, score, percentage, remark, reason, submitted_at)
		ON CONFLICT (id) DO NOTHING
	`,
		cols.ids, cols.users, cols.exams, cols.total, cols.correct,
		cols.incorrect, cols.blank, cols.scores, cols.percentages, cols.remarks, cols.reasons, cols.submittedAt,
	)
	return err
}

// ----------------------------------------------------------------
// FALLBACK single insert
// ----------------------------------------------------------------

func (w *ResultWorker) insertOne(ctx context.Context, r model.Result) error {
	_, err := w.pool.Exec(ctx, `
		INSERT INTO exam_results (
			id, user_id, exam_name, total_questions, correct_answers,
			incorrect_answers, unanswered, score, percentage, remark, reason, submitted_at
		)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.UserID, r.ExamName, r.TotalQuestions, r.CorrectAnswers,
		r.IncorrectAnswers, r.Unanswered, r.Score, r.Percentage, string(r.Remark), string(r.Reason), r.Timestamp,
	)
	return err
}

// clearArchivedSnapshots drops the archived progress of finished attempts.
func (w *ResultWorker) clearArchivedSnapshots(ctx context.Context, batch []model.Result) {
	cols := columnsOf(batch)
	_, err := w.pool.Exec(ctx, `
		DELETE FROM exam_snapshots AS s
		USING UNNEST($1::text[], $2::timestamptz[]) AS t (user_id, submitted_at)
		WHERE s.user_id = t.user_id AND s.saved_at <= t.submitted_at
	`, cols.users, cols.submittedAt)
	if err != nil {
		w.c.log.Warn().Err(err).Msg("Failed to clear archived snapshots")
	}
}
