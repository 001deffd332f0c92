package snapshot

import (
	"context"
	"sync"

	"github.com/semanticarchitectures/voicenet-ome/internal/toolerrors"
)

// MapStore is an in-memory Store, used in tests and single-process demos.
type MapStore struct {
	mu   sync.RWMutex
	data map[string]Snapshot
}

// NewMapStore constructs an empty MapStore.
func NewMapStore() *MapStore {
	return &MapStore{data: make(map[string]Snapshot)}
}

func (s *MapStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.SessionID] = snap
	return nil
}

func (s *MapStore) Load(_ context.Context, sessionID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[sessionID]
	if !ok {
		return Snapshot{}, toolerrors.New(toolerrors.KindSnapshotNotFound, "no snapshot for session "+sessionID)
	}
	return snap, nil
}

func (s *MapStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.data))
	for _, snap := range s.data {
		out = append(out, Summary{
			SessionID:    snap.SessionID,
			SavedAt:      snap.SavedAt,
			MessageCount: len(snap.Messages),
			AgentCount:   len(snap.AgentState),
		})
	}
	return out, nil
}

func (s *MapStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}
