package keyedmutex

import (
	"sync"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	m := New(time.Hour, 0)
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("phone-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("expected 50, got %d (race on shared key)", counter)
	}
}

func TestPruneDropsStaleEntries(t *testing.T) {
	m := New(10*time.Millisecond, 0)
	unlock := m.Lock("a")
	unlock()
	if m.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", m.Len())
	}
	time.Sleep(20 * time.Millisecond)
	m.prune()
	if m.Len() != 0 {
		t.Fatalf("expected entry to be pruned, got %d", m.Len())
	}
}
