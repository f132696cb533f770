package storemem

import (
	"context"
	"sync"
	"time"

	"github.com/jonatasporto/trinks-router/domain"
)

type bufferEntry struct {
	state     domain.MessageBufferState
	expiresAt time.Time
}

// BufferStore is an in-memory store.BufferStore.
type BufferStore struct {
	mu    sync.RWMutex
	items map[domain.Phone]bufferEntry
}

func NewBufferStore() *BufferStore {
	return &BufferStore{items: make(map[domain.Phone]bufferEntry)}
}

func (s *BufferStore) Get(ctx context.Context, phone domain.Phone) (*domain.MessageBufferState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[phone]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	cp := e.state
	return &cp, nil
}

func (s *BufferStore) Put(ctx context.Context, state domain.MessageBufferState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.Phone] = bufferEntry{state: state, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *BufferStore) Delete(ctx context.Context, phone domain.Phone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, phone)
	return nil
}
