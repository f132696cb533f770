package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestExecutePassesThroughSuccess(t *testing.T) {
	r := NewRegistry(Config{ErrorRateThreshold: 0.5, OpenDuration: 10 * time.Millisecond, MinRequests: 2})
	v, err := r.Execute(context.Background(), "trinks", func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("unexpected result %v, %v", v, err)
	}
}

func TestBreakerOpensAfterFailureThreshold(t *testing.T) {
	r := NewRegistry(Config{ErrorRateThreshold: 0.5, OpenDuration: 50 * time.Millisecond, MinRequests: 2})
	failing := func(ctx context.Context) (interface{}, error) { return nil, errors.New("boom") }

	for i := 0; i < 4; i++ {
		_, _ = r.Execute(context.Background(), "trinks", failing)
	}
	if r.State("trinks") != gobreaker.StateOpen {
		t.Fatalf("expected breaker to be open, got %v", r.State("trinks"))
	}

	_, err := r.Execute(context.Background(), "trinks", func(ctx context.Context) (interface{}, error) {
		return "should not run", nil
	})
	if err != gobreaker.ErrOpenState {
		t.Fatalf("expected ErrOpenState, got %v", err)
	}
}
