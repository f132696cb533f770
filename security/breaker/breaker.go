// Package breaker wraps github.com/sony/gobreaker with one breaker per
// external dependency name ("trinks", "evolution", …), matching the
// specification's closed→open→half-open→closed state machine.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Config tunes every breaker the Registry constructs.
type Config struct {
	ErrorRateThreshold float64       // e.g. 0.5
	OpenDuration       time.Duration // e.g. 5s
	MinRequests        uint32        // minimum rolling volume before tripping; default 10
}

// Registry lazily constructs and caches one gobreaker.CircuitBreaker per
// dependency name.
type Registry struct {
	cfg  Config
	mu   sync.Mutex
	byName map[string]*gobreaker.CircuitBreaker
}

// NewRegistry builds a Registry with the given per-breaker configuration.
func NewRegistry(cfg Config) *Registry {
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	return &Registry{cfg: cfg, byName: make(map[string]*gobreaker.CircuitBreaker)}
}

func (r *Registry) get(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.byName[name]; ok {
		return cb
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3, // half-open probe window
		Timeout:     r.cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < r.cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= r.cfg.ErrorRateThreshold
		},
	}
	cb := gobreaker.NewCircuitBreaker(settings)
	r.byName[name] = cb
	return cb
}

// Execute runs fn through the named dependency's breaker. When the breaker
// is open, fn is not called and gobreaker.ErrOpenState is returned; callers
// in the state machine treat that as the "soft failure" case (see
// ValidateAvailability's categorical-confidence fallback).
func (r *Registry) Execute(ctx context.Context, name string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	cb := r.get(name)
	return cb.Execute(func() (interface{}, error) { return fn(ctx) })
}

// State reports the current state of the named dependency's breaker, for
// admin/health inspection.
func (r *Registry) State(name string) gobreaker.State {
	return r.get(name).State()
}
