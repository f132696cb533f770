package storemem

import (
	"context"
	"sync"

	"github.com/jonatasporto/trinks-router/domain"
)

// AppointmentAuditStore is an in-memory store.AppointmentAuditStore.
type AppointmentAuditStore struct {
	mu    sync.Mutex
	byKey map[string]domain.AppointmentAttempt
}

func NewAppointmentAuditStore() *AppointmentAuditStore {
	return &AppointmentAuditStore{byKey: make(map[string]domain.AppointmentAttempt)}
}

func (s *AppointmentAuditStore) FindByIdempotencyKey(ctx context.Context, key string) (*domain.AppointmentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := a
	return &cp, nil
}

func (s *AppointmentAuditStore) Insert(ctx context.Context, attempt domain.AppointmentAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[attempt.IdempotencyKey]; exists {
		return nil // InvariantViolation treated as success, per error-handling design
	}
	s.byKey[attempt.IdempotencyKey] = attempt
	return nil
}

func (s *AppointmentAuditStore) Update(ctx context.Context, attempt domain.AppointmentAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[attempt.IdempotencyKey] = attempt
	return nil
}
