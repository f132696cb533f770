package storemem

import (
	"context"
	"sync"
	"time"
)

type counterEntry struct {
	count     int
	expiresAt time.Time
}

// RateCounterStore is an in-memory store.RateCounterStore, keyed by a caller
// composed key such as "ip:1.2.3.4:2026-07-29T10:05" (one-minute buckets).
type RateCounterStore struct {
	mu       sync.Mutex
	counters map[string]counterEntry
	bans     map[string]time.Time
}

func NewRateCounterStore() *RateCounterStore {
	return &RateCounterStore{
		counters: make(map[string]counterEntry),
		bans:     make(map[string]time.Time),
	}
}

func (s *RateCounterStore) Increment(ctx context.Context, key string, window time.Time, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	e, ok := s.counters[key]
	if !ok || now.After(e.expiresAt) {
		e = counterEntry{count: 0, expiresAt: now.Add(ttl)}
	}
	e.count++
	s.counters[key] = e
	return e.count, nil
}

func (s *RateCounterStore) IsBanned(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.bans[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		delete(s.bans, key)
		return false, nil
	}
	return true, nil
}

func (s *RateCounterStore) Ban(ctx context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[key] = until
	return nil
}
