// Package buffer implements C3: coalescing bursts of fragmented inbound
// messages within a short window so a user who types in three fragments is
// answered once. Modeled as a stateful object whose Append either returns
// Pending or an aggregated Ready(text) — no request-handler goroutine
// blocks for the window; a single time.AfterFunc timer drives the flush,
// invoking an injected FlushFunc so the Conversation Controller resumes
// processing even when no caller is synchronously waiting on Append.
package buffer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/store"
)

// AppendResult is the outcome of appending one fragment.
type AppendResult struct {
	Ready          bool
	AggregatedText string
}

// FlushFunc is invoked exactly once per window, whether the window closed
// because its timer elapsed or because max_messages was reached, carrying
// the arrival-ordered, space-joined aggregate.
type FlushFunc func(tenant domain.Tenant, phone domain.Phone, aggregatedText string)

type window struct {
	mu        sync.Mutex
	tenant    domain.Tenant
	fragments []string
	timer     *time.Timer
	flushed   bool
}

// Buffer coalesces per-phone message fragments. The zero value is not
// usable; construct with New.
type Buffer struct {
	windowDuration time.Duration
	maxMessages    int
	backing        store.BufferStore
	onFlush        FlushFunc

	mu      sync.Mutex
	windows map[domain.Phone]*window

	degraded bool // set once the backing store has failed, per §4.3 fallback
}

// New builds a Buffer with the given window duration and per-window
// fragment cap, backed by store for crash-recovery persistence. onFlush is
// called once per completed window.
func New(windowDuration time.Duration, maxMessages int, backing store.BufferStore, onFlush FlushFunc) *Buffer {
	return &Buffer{
		windowDuration: windowDuration,
		maxMessages:    maxMessages,
		backing:        backing,
		onFlush:        onFlush,
		windows:        make(map[domain.Phone]*window),
	}
}

// Append adds fragment to phone's current window, starting one if none is
// active. Within the window it returns Ready=false and the caller must
// suppress any outbound reply; the window's eventual flush (by timer or by
// reaching max_messages) is reported through onFlush, not through a later
// Append call. A fragment arriving after a flush starts a fresh window.
//
// If the backing store is unavailable, the buffer degrades to pass-through
// (Ready=true on every fragment) rather than ever dropping an inbound
// message.
func (b *Buffer) Append(ctx context.Context, tenant domain.Tenant, phone domain.Phone, fragment string) AppendResult {
	if b.degraded {
		return AppendResult{Ready: true, AggregatedText: fragment}
	}

	b.mu.Lock()
	w, exists := b.windows[phone]
	if !exists {
		w = &window{tenant: tenant}
		b.windows[phone] = w
		w.timer = time.AfterFunc(b.windowDuration, func() { b.flush(phone) })
	}
	b.mu.Unlock()

	w.mu.Lock()
	w.fragments = append(w.fragments, fragment)
	full := len(w.fragments) >= b.maxMessages
	w.mu.Unlock()

	b.persist(ctx, phone, w)

	if b.degraded {
		b.mu.Lock()
		if b.windows[phone] == w {
			delete(b.windows, phone)
		}
		b.mu.Unlock()
		w.mu.Lock()
		w.flushed = true
		w.timer.Stop()
		text := strings.Join(w.fragments, " ")
		w.mu.Unlock()
		return AppendResult{Ready: true, AggregatedText: text}
	}

	if full {
		b.flush(phone)
	}
	return AppendResult{Ready: false}
}

// flush closes phone's current window (if it is still the active one) and
// invokes onFlush with the joined fragments. Safe to call from the timer
// goroutine or synchronously from Append (max_messages path); idempotent
// per window via the flushed guard.
func (b *Buffer) flush(phone domain.Phone) {
	b.mu.Lock()
	w, exists := b.windows[phone]
	if exists {
		delete(b.windows, phone)
	}
	b.mu.Unlock()
	if !exists {
		return
	}

	w.mu.Lock()
	if w.flushed {
		w.mu.Unlock()
		return
	}
	w.flushed = true
	w.timer.Stop()
	text := strings.Join(w.fragments, " ")
	tenant := w.tenant
	w.mu.Unlock()

	if err := b.backing.Delete(context.Background(), phone); err != nil {
		slog.Warn("buffer: failed to clear persisted state on flush", "error", err)
	}

	if b.onFlush != nil {
		b.onFlush(tenant, phone, text)
	}
}

func (b *Buffer) persist(ctx context.Context, phone domain.Phone, w *window) {
	w.mu.Lock()
	fragments := append([]string(nil), w.fragments...)
	w.mu.Unlock()

	grace := b.windowDuration + 5*time.Second
	err := b.backing.Put(ctx, domain.MessageBufferState{Phone: phone, Fragments: fragments, StartedAt: time.Now()}, grace)
	if err != nil {
		slog.Warn("buffer: backing store unavailable, degrading to pass-through", "error", err)
		b.degraded = true
	}
}
