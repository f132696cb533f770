package storemem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/store"
)

// UpsellStore is an in-memory store.UpsellStore.
type UpsellStore struct {
	mu     sync.Mutex
	events []domain.UpsellEvent
	states map[string]domain.UpsellConversationState
	jobs   map[string]domain.ScheduledUpsellJob
}

func NewUpsellStore() *UpsellStore {
	return &UpsellStore{
		states: make(map[string]domain.UpsellConversationState),
		jobs:   make(map[string]domain.ScheduledUpsellJob),
	}
}

func (s *UpsellStore) AppendEvent(ctx context.Context, event domain.UpsellEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *UpsellStore) GetConversationState(ctx context.Context, conversationID string) (*domain.UpsellConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[conversationID]
	if !ok {
		return nil, nil
	}
	cp := st
	return &cp, nil
}

func (s *UpsellStore) PutConversationState(ctx context.Context, state domain.UpsellConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ConversationID] = state
	return nil
}

func (s *UpsellStore) CreateJob(ctx context.Context, job domain.ScheduledUpsellJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *UpsellStore) DuePendingJobs(ctx context.Context, asOf time.Time, limit int) ([]domain.ScheduledUpsellJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.ScheduledUpsellJob
	for _, j := range s.jobs {
		if j.Status == domain.JobPending && !j.ScheduledFor.After(asOf) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if limit > 0 && limit < len(due) {
		due = due[:limit]
	}
	return due, nil
}

func (s *UpsellStore) UpdateJob(ctx context.Context, job domain.ScheduledUpsellJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *UpsellStore) Metrics(ctx context.Context) (store.UpsellMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var m store.UpsellMetrics
	for _, e := range s.events {
		switch e.Event {
		case domain.UpsellShown:
			m.ShownTotal++
		case domain.UpsellAccepted:
			m.AcceptedTotal++
		case domain.UpsellDeclined:
			m.DeclinedTotal++
		case domain.UpsellScheduled:
			m.ScheduledTotal++
		case domain.UpsellError:
			m.ErrorTotal++
		}
	}
	return m, nil
}
