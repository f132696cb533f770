package storemem

import (
	"context"
	"sync"
	"time"

	"github.com/jonatasporto/trinks-router/domain"
)

// HandoffStore is an in-memory store.HandoffStore.
type HandoffStore struct {
	mu    sync.RWMutex
	items map[convKey]domain.HandoffFlag
}

func NewHandoffStore() *HandoffStore {
	return &HandoffStore{items: make(map[convKey]domain.HandoffFlag)}
}

func (s *HandoffStore) Get(ctx context.Context, tenant domain.Tenant, phone domain.Phone) (*domain.HandoffFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.items[convKey{tenant, phone}]
	if !ok {
		return nil, nil
	}
	if f.Active && time.Now().After(f.ExpiresAt) {
		return nil, nil
	}
	cp := f
	return &cp, nil
}

func (s *HandoffStore) Set(ctx context.Context, flag domain.HandoffFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[convKey{flag.Tenant, flag.Phone}] = flag
	return nil
}

func (s *HandoffStore) Clear(ctx context.Context, tenant domain.Tenant, phone domain.Phone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, convKey{tenant, phone})
	return nil
}
