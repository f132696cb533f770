package storemem

import (
	"context"
	"sync"
	"time"

	"github.com/jonatasporto/trinks-router/domain"
)

type convKey struct {
	tenant domain.Tenant
	phone  domain.Phone
}

type convEntry struct {
	ctx       domain.ConversationContext
	expiresAt time.Time
}

// ConversationStore is an in-memory store.ConversationStore.
type ConversationStore struct {
	mu    sync.RWMutex
	items map[convKey]convEntry
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{items: make(map[convKey]convEntry)}
}

func (s *ConversationStore) Get(ctx context.Context, tenant domain.Tenant, phone domain.Phone) (*domain.ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[convKey{tenant, phone}]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	cp := e.ctx
	return &cp, nil
}

func (s *ConversationStore) Put(ctx context.Context, val domain.ConversationContext, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[convKey{val.Tenant, val.Phone}] = convEntry{ctx: val, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *ConversationStore) Delete(ctx context.Context, tenant domain.Tenant, phone domain.Phone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, convKey{tenant, phone})
	return nil
}

func (s *ConversationStore) List(ctx context.Context, tenant domain.Tenant) ([]domain.ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	var out []domain.ConversationContext
	for k, e := range s.items {
		if k.tenant == tenant && now.Before(e.expiresAt) {
			out = append(out, e.ctx)
		}
	}
	return out, nil
}
