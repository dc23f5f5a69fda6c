package statestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ruteri/slb-bond-backend/interfaces"
)

// MemoryStore keeps the latest snapshot in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	snapshot []byte
	seq      uint64
	saved    bool
}

// Compile-time interface check.
var _ interfaces.StateStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.saved {
		return nil, interfaces.ErrStateNotFound
	}
	return append([]byte(nil), s.snapshot...), nil
}

func (s *MemoryStore) Save(ctx context.Context, seq uint64, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saved && seq <= s.seq {
		return fmt.Errorf("%w: stored %d, got %d", ErrStaleSequence, s.seq, seq)
	}
	s.snapshot = append([]byte(nil), snapshot...)
	s.seq = seq
	s.saved = true
	return nil
}

func (s *MemoryStore) Close() error { return nil }
