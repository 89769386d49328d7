package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaiso/Conduit/internal/domain"
)

// MemoryStore — хранилище в памяти. Для тестов и локального запуска.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[domain.StateKey][]byte
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[domain.StateKey][]byte)}
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, key domain.StateKey, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.docs[collection]
	if !ok {
		c = make(map[domain.StateKey][]byte)
		s.docs[collection] = c
	}
	c[key] = append([]byte(nil), doc...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, collection string, key domain.StateKey) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[collection][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, collection, key)
	}
	return append([]byte(nil), doc...), nil
}

func (s *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection]), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
