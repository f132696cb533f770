// Package store declares the persistence interfaces every component of the
// router core depends on. Each aggregate gets its own narrow interface,
// mirroring the teacher's per-entity store files (store/agent_stats.go,
// store/ai_conversation.go, …) rather than one god interface.
package store

import (
	"context"
	"time"

	"github.com/jonatasporto/trinks-router/domain"
)

// CatalogStore is C1's persistence boundary.
type CatalogStore interface {
	Upsert(ctx context.Context, tenant domain.Tenant, items []domain.CatalogItem) error
	SearchSuggestions(ctx context.Context, tenant domain.Tenant, normalizedTerm string, limit int) ([]domain.CatalogSuggestion, error)
	ExistsForBooking(ctx context.Context, tenant domain.Tenant, serviceID string, professionalID *int64) (bool, error)
	TopNByCategory30d(ctx context.Context, tenant domain.Tenant, normalizedCategory string, n int) ([]domain.CatalogSuggestion, error)
	IsCategoryGeneric(ctx context.Context, tenant domain.Tenant, normalizedTerm string) (bool, error)
	RecordBookingSuccess(ctx context.Context, tenant domain.Tenant, serviceID string, at time.Time) error
	CountAll(ctx context.Context, tenant domain.Tenant) (int, error)
	RecommendedAddon(ctx context.Context, tenant domain.Tenant, primaryServiceID string) (*domain.CatalogSuggestion, error)
}

// SyncWatermarkStore is C2's persistence boundary for the incremental sync
// cursor.
type SyncWatermarkStore interface {
	Get(ctx context.Context, tenant domain.Tenant) (*domain.SyncWatermark, error)
	Set(ctx context.Context, tenant domain.Tenant, at time.Time) error
}

// SyncLockStore provides the tenant-scoped distributed lock C2 needs,
// modeled separately from the in-process fail-fast guard so it can be
// backed by a real distributed primitive in production.
type SyncLockStore interface {
	Acquire(ctx context.Context, tenant domain.Tenant, ttl time.Duration) (bool, error)
	Release(ctx context.Context, tenant domain.Tenant) error
}

// ConversationStore is C6's durable backing for ConversationContext.
type ConversationStore interface {
	Get(ctx context.Context, tenant domain.Tenant, phone domain.Phone) (*domain.ConversationContext, error)
	Put(ctx context.Context, ctxVal domain.ConversationContext, ttl time.Duration) error
	Delete(ctx context.Context, tenant domain.Tenant, phone domain.Phone) error
	List(ctx context.Context, tenant domain.Tenant) ([]domain.ConversationContext, error)
}

// BufferStore is C3's durable backing, used only to survive a process
// restart mid-window; the hot path runs in-process.
type BufferStore interface {
	Get(ctx context.Context, phone domain.Phone) (*domain.MessageBufferState, error)
	Put(ctx context.Context, state domain.MessageBufferState, ttl time.Duration) error
	Delete(ctx context.Context, phone domain.Phone) error
}

// HandoffStore tracks the human-handoff override.
type HandoffStore interface {
	Get(ctx context.Context, tenant domain.Tenant, phone domain.Phone) (*domain.HandoffFlag, error)
	Set(ctx context.Context, flag domain.HandoffFlag) error
	Clear(ctx context.Context, tenant domain.Tenant, phone domain.Phone) error
}

// UpsellStore is C7's persistence boundary.
type UpsellStore interface {
	AppendEvent(ctx context.Context, event domain.UpsellEvent) error
	GetConversationState(ctx context.Context, conversationID string) (*domain.UpsellConversationState, error)
	PutConversationState(ctx context.Context, state domain.UpsellConversationState) error

	CreateJob(ctx context.Context, job domain.ScheduledUpsellJob) error
	DuePendingJobs(ctx context.Context, asOf time.Time, limit int) ([]domain.ScheduledUpsellJob, error)
	UpdateJob(ctx context.Context, job domain.ScheduledUpsellJob) error

	Metrics(ctx context.Context) (UpsellMetrics, error)
}

// UpsellMetrics is a point-in-time snapshot for the admin metrics endpoint.
type UpsellMetrics struct {
	ShownTotal     int64
	AcceptedTotal  int64
	DeclinedTotal  int64
	ScheduledTotal int64
	ErrorTotal     int64
}

// AppointmentAuditStore records every provider booking call for idempotency
// and audit.
type AppointmentAuditStore interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.AppointmentAttempt, error)
	Insert(ctx context.Context, attempt domain.AppointmentAttempt) error
	Update(ctx context.Context, attempt domain.AppointmentAttempt) error
}

// RateCounterStore persists sliding-window rate-limit counters and bans.
type RateCounterStore interface {
	Increment(ctx context.Context, key string, window time.Time, ttl time.Duration) (int, error)
	IsBanned(ctx context.Context, key string) (bool, error)
	Ban(ctx context.Context, key string, until time.Time) error
}

// MessageDedupStore implements the short-TTL provider-message-id dedup set.
type MessageDedupStore interface {
	// SeenBefore records messageID if new and reports whether it had already
	// been recorded (atomic test-and-set semantics).
	SeenBefore(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
}
