package buffer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/storemem"
)

func TestAppendWithinWindowIsNotReady(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewBufferStore()
	b := New(time.Hour, 8, backing, nil)
	res := b.Append(ctx, "t1", "+5511999999991", "oi")
	if res.Ready {
		t.Fatal("expected not ready within window")
	}
}

func TestMaxMessagesFlushesSynchronously(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewBufferStore()
	var mu sync.Mutex
	var got string
	b := New(time.Hour, 2, backing, func(tenant domain.Tenant, phone domain.Phone, text string) {
		mu.Lock()
		got = text
		mu.Unlock()
	})
	b.Append(ctx, "t1", "+5511999999991", "oi")
	b.Append(ctx, "t1", "+5511999999991", "tudo bem")

	mu.Lock()
	defer mu.Unlock()
	if got != "oi tudo bem" {
		t.Fatalf("expected joined fragments, got %q", got)
	}
}

func TestTimerFlushInvokesCallbackAsynchronously(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewBufferStore()
	done := make(chan string, 1)
	b := New(20*time.Millisecond, 8, backing, func(tenant domain.Tenant, phone domain.Phone, text string) {
		done <- text
	})
	b.Append(ctx, "t1", "+5511999999991", "quero agendar um")
	b.Append(ctx, "t1", "+5511999999991", "corte de cabelo")

	select {
	case text := <-done:
		if text != "quero agendar um corte de cabelo" {
			t.Fatalf("unexpected aggregate: %q", text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for flush")
	}
}

func TestFragmentAfterFlushStartsFreshWindow(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewBufferStore()
	flushes := make(chan string, 4)
	b := New(15*time.Millisecond, 8, backing, func(tenant domain.Tenant, phone domain.Phone, text string) {
		flushes <- text
	})
	b.Append(ctx, "t1", "+5511999999991", "primeiro")
	<-flushes

	b.Append(ctx, "t1", "+5511999999991", "segundo")
	text := <-flushes
	if text != "segundo" {
		t.Fatalf("expected fresh window with only the new fragment, got %q", text)
	}
}

func TestDegradesToPassThroughWhenBackingStoreFails(t *testing.T) {
	ctx := context.Background()
	b := New(time.Hour, 8, failingBufferStore{}, nil)
	res := b.Append(ctx, "t1", "+5511999999991", "oi")
	if !res.Ready || res.AggregatedText != "oi" {
		t.Fatalf("expected immediate pass-through, got %+v", res)
	}
}

type failingBufferStore struct{}

func (failingBufferStore) Get(ctx context.Context, phone domain.Phone) (*domain.MessageBufferState, error) {
	return nil, nil
}
func (failingBufferStore) Put(ctx context.Context, state domain.MessageBufferState, ttl time.Duration) error {
	return assertErr
}
func (failingBufferStore) Delete(ctx context.Context, phone domain.Phone) error { return nil }

var assertErr = &storeErr{"backing store down"}

type storeErr struct{ msg string }

func (e *storeErr) Error() string { return e.msg }
