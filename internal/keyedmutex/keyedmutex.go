// Package keyedmutex implements the "Map<phone, mutex>" pattern called out
// in the router's design notes: a per-key logical lock with periodic
// pruning so a long-running process does not accumulate one mutex per
// phone number ever seen.
package keyedmutex

import (
	"sync"
	"time"
)

type entry struct {
	mu       sync.Mutex
	lastUsed time.Time
}

// Map is a registry of per-key mutexes, safe for concurrent use.
type Map struct {
	mu      sync.Mutex
	entries map[string]*entry

	pruneInterval time.Duration
	pruneAfter    time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// New builds a Map that drops entries unused for longer than pruneAfter,
// checking every pruneInterval. Passing a non-positive pruneInterval
// disables the background pruning goroutine (useful in tests).
func New(pruneAfter, pruneInterval time.Duration) *Map {
	m := &Map{
		entries:       make(map[string]*entry),
		pruneInterval: pruneInterval,
		pruneAfter:    pruneAfter,
		stopCh:        make(chan struct{}),
	}
	if pruneInterval > 0 {
		go m.pruneLoop()
	}
	return m
}

// Lock acquires the mutex for key, creating it if necessary, and returns an
// unlock function the caller must invoke exactly once.
func (m *Map) Lock(key string) func() {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.lastUsed = time.Now()
	m.mu.Unlock()

	e.mu.Lock()
	return func() { e.mu.Unlock() }
}

func (m *Map) pruneLoop() {
	ticker := time.NewTicker(m.pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.prune()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Map) prune() {
	cutoff := time.Now().Add(-m.pruneAfter)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if e.lastUsed.Before(cutoff) {
			// TryLock ensures we never drop a mutex someone is actively
			// holding; on failure it's in use and will be re-checked next pass.
			if e.mu.TryLock() {
				e.mu.Unlock()
				delete(m.entries, k)
			}
		}
	}
}

// Len reports the number of tracked keys; exposed for tests and metrics.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops the background pruning goroutine, if any.
func (m *Map) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
