package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// RedisSnapshotStore keeps per-student progress and the submit guard in Redis.
type RedisSnapshotStore struct {
	rdb     *redis.Client
	ttl     time.Duration
	archive bool
}

// NewRedisSnapshotStore creates a store. ttl <= 0 keeps keys until cleared.
// With archive set, every save is also queued for the snapshot archive worker.
func NewRedisSnapshotStore(rdb *redis.Client, ttl time.Duration, archive bool) *RedisSnapshotStore {
	return &RedisSnapshotStore{rdb: rdb, ttl: ttl, archive: archive}
}

// ArchivedSnapshot is the queue payload consumed by the snapshot archive worker.
type ArchivedSnapshot struct {
	UserID   string                `json:"user_id"`
	Snapshot model.SessionSnapshot `json:"snapshot"`
	SavedAt  time.Time             `json:"saved_at"`
}

func (s *RedisSnapshotStore) Load(ctx context.Context, userID string) (*model.SessionSnapshot, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.StudentProgressKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return decodeSnapshot(raw)
}

func (s *RedisSnapshotStore) Save(ctx context.Context, userID string, snap *model.SessionSnapshot) error {
	raw, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.StudentProgressKey(userID), raw, s.ttl)
	if s.archive {
		payload, err := json.Marshal(ArchivedSnapshot{UserID: userID, Snapshot: *snap, SavedAt: time.Now()})
		if err != nil {
			return err
		}
		pipe.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Clear(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx,
		config.CacheKey.StudentProgressKey(userID),
		config.CacheKey.StudentSubmittedKey(userID),
	).Err()
}

// AcquireSubmitGuard sets the guard with SETNX; only the first caller gets true.
func (s *RedisSnapshotStore) AcquireSubmitGuard(ctx context.Context, userID string) (bool, error) {
	ttl := s.ttl
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	ok, err := s.rdb.SetNX(ctx, config.CacheKey.StudentSubmittedKey(userID), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire submit guard: %w", err)
	}
	return ok, nil
}

func (s *RedisSnapshotStore) ReleaseSubmitGuard(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, config.CacheKey.StudentSubmittedKey(userID)).Err()
}
