package repository

import (
	"context"
	"sync"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// MemorySnapshotStore is a process-local store. Snapshots are kept in their
// encoded form so Load behaves like the persistent stores.
type MemorySnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string][]byte
	guards    map[string]struct{}
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		snapshots: make(map[string][]byte),
		guards:    make(map[string]struct{}),
	}
}

func (s *MemorySnapshotStore) Load(_ context.Context, userID string) (*model.SessionSnapshot, error) {
	s.mu.Lock()
	raw, ok := s.snapshots[userID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decodeSnapshot(raw)
}

func (s *MemorySnapshotStore) Save(_ context.Context, userID string, snap *model.SessionSnapshot) error {
	raw, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshots[userID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemorySnapshotStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.snapshots, userID)
	delete(s.guards, userID)
	s.mu.Unlock()
	return nil
}

func (s *MemorySnapshotStore) AcquireSubmitGuard(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.guards[userID]; held {
		return false, nil
	}
	s.guards[userID] = struct{}{}
	return true, nil
}

func (s *MemorySnapshotStore) ReleaseSubmitGuard(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.guards, userID)
	s.mu.Unlock()
	return nil
}

// PutRaw stores raw bytes as a user's snapshot.
func (s *MemorySnapshotStore) PutRaw(userID string, raw []byte) {
	s.mu.Lock()
	s.snapshots[userID] = raw
	s.mu.Unlock()
}

// GuardHeld reports whether the submit guard is set for userID.
func (s *MemorySnapshotStore) GuardHeld(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, held := s.guards[userID]
	return held
}
