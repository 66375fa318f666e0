package data

import (
	"context"
	"sync"

	"github.com/mednat/tandem-extras/internal/biz"
)

// MemoryStore is a process-local cache store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[biz.Namespace][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[biz.Namespace][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, ns biz.Namespace) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[ns]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(_ context.Context, ns biz.Namespace, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[ns] = append([]byte(nil), value...)
	return nil
}
