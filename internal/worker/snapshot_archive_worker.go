package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// SnapshotArchiveWorker consumes persist_snapshots_queue and keeps the
// latest saved progress of every student in exam_snapshots. Rows older
// than a stored result for the same student are skipped.
type SnapshotArchiveWorker struct {
	pool *pgxpool.Pool
	c    consumer[repository.ArchivedSnapshot]
}

// NewSnapshotArchiveWorker creates a new SnapshotArchiveWorker.
func NewSnapshotArchiveWorker(pool *pgxpool.Pool, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *SnapshotArchiveWorker {
	w := &SnapshotArchiveWorker{pool: pool}
	w.c = consumer[repository.ArchivedSnapshot]{
		list:       redisList{rdb: rdb},
		queue:      config.WorkerKey.PersistSnapshotsQueue,
		size:       cfg.WorkerBatchSize,
		flushEvery: cfg.WorkerFlushPeriod,
		log:        log.With().Str("component", "snapshot_archive_worker").Logger(),
		bulk:       w.bulkUpsert,
		single:     w.upsertOne,
	}
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *SnapshotArchiveWorker) Start(ctx context.Context) {
	w.c.run(ctx)
}

// latestPerUser keeps the newest snapshot of each user, in first-seen order.
func latestPerUser(batch []repository.ArchivedSnapshot) []repository.ArchivedSnapshot {
	index := make(map[string]int, len(batch))
	out := make([]repository.ArchivedSnapshot, 0, len(batch))
	for _, s := range batch {
		if i, ok := index[s.UserID]; ok {
			if !s.SavedAt.Before(out[i].SavedAt) {
				out[i] = s
			}
			continue
		}
		index[s.UserID] = len(out)
		out = append(out, s)
	}
	return out
}

const upsertSnapshotSQL = `
	INSERT INTO exam_snapshots (user_id, snapshot, time_left_seconds, violation_count, saved_at)
	SELECT t.user_id, t.snapshot, t.time_left, t.violations, t.saved_at
	FROM UNNEST($1::text[], $2::jsonb[], $3::int[], $4::int[], $5::timestamptz[])
		AS t (user_id, snapshot, time_left, violations, saved_at)
	WHERE NOT EXISTS (
		SELECT 1 FROM exam_results r
		WHERE r.user_id = t.user_id AND r.submitted_at >= t.saved_at
	)
	ON CONFLICT (user_id) DO UPDATE
	SET snapshot = EXCLUDED.snapshot,
	    time_left_seconds = EXCLUDED.time_left_seconds,
	    violation_count = EXCLUDED.violation_count,
	    saved_at = EXCLUDED.saved_at
	WHERE exam_snapshots.saved_at <= EXCLUDED.saved_at
`

func (w *SnapshotArchiveWorker) bulkUpsert(ctx context.Context, batch []repository.ArchivedSnapshot) error {
	latest := latestPerUser(batch)
	n := len(latest)

	users := make([]string, n)
	snaps := make([]string, n)
	timeLeft := make([]int32, n)
	violations := make([]int32, n)
	savedAt := make([]time.Time, n)
	for i, s := range latest {
		raw, err := json.Marshal(s.Snapshot)
		if err != nil {
			return err
		}
		users[i] = s.UserID
		snaps[i] = string(raw)
		timeLeft[i] = int32(s.Snapshot.TimeLeftSeconds)
		violations[i] = int32(s.Snapshot.ViolationCount)
		savedAt[i] = s.SavedAt
	}

	_, err := w.pool.Exec(ctx, upsertSnapshotSQL, users, snaps, timeLeft, violations, savedAt)
	return err
}

func (w *SnapshotArchiveWorker) upsertOne(ctx context.Context, s repository.ArchivedSnapshot) error {
	return w.bulkUpsert(ctx, []repository.ArchivedSnapshot{s})
}
