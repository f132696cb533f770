// Package domain declares the entity types shared by every component of the
// router core. Field names follow the specification's data model; none of
// these types own persistence — that is the job of the store interfaces.
package domain

import "time"

// Tenant scopes every other entity. It is an opaque string identifier (the
// provider-supplied phone-number-id when available, else a configured
// default — see DESIGN.md's Open Question decision).
type Tenant string

// Phone is an E.164-normalized digit string identifying a conversation.
type Phone string

// CatalogItem is one row per (tenant, service ID, professional ID).
// ProfessionalID == 0 denotes "any professional".
type CatalogItem struct {
	Tenant             Tenant
	ServiceID          string
	ProfessionalID     int64
	Name               string
	NormalizedName     string
	Category           string
	NormalizedCategory string
	DurationMinutes    int
	Price              *float64
	VisibleToClient    bool
	Active             bool
	LastSyncedAt       time.Time
}

// CatalogSuggestion is a search result row, already grouped by ServiceID.
type CatalogSuggestion struct {
	ServiceID          string
	Name               string
	Category           string
	NormalizedCategory string
	Duration           int
	Price              *float64
}

// SyncWatermark is the per-tenant high-water mark of ingested catalog items.
type SyncWatermark struct {
	Tenant         Tenant
	LastUpdateSeen time.Time
}

// ConversationSlots holds the per-conversation working variables the state
// machine reads and writes.
type ConversationSlots struct {
	ServiceID        string
	ProfessionalID   int64
	StartISO         string
	RawQuery         string
	Category         string
	ValidationResult string
	TopSuggestions   []CatalogSuggestion
}

// ConversationContext is the full per-(tenant, phone) state the Conversation
// Controller owns exclusively under a per-phone logical lock.
type ConversationContext struct {
	Tenant       Tenant
	Phone        Phone
	State        string
	Slots        ConversationSlots
	Vars         map[string]bool
	// ToolResults holds the most recent output of each call_tool action,
	// keyed by its save_as name, so later conditions/templates in the same
	// or a later state can reference e.g. {{validate_result.ok}}.
	ToolResults  map[string]map[string]interface{}
	History      []HistoryEntry
	LastActivity time.Time
}

// HistoryEntry is one turn of bounded conversation history.
type HistoryEntry struct {
	Role string // "user" | "assistant"
	Text string
	At   time.Time
}

// MessageBufferState is the persisted shape of a per-phone message buffer,
// used by BufferStore implementations; the in-process buffer package keeps
// its own richer runtime state (including the flush timer).
type MessageBufferState struct {
	Phone     Phone
	Fragments []string
	StartedAt time.Time
}

// HandoffFlag marks a (tenant, phone) pair as suspended from automated
// replies until cleared or expired.
type HandoffFlag struct {
	Tenant    Tenant
	Phone     Phone
	Active    bool
	ExpiresAt time.Time
}

// UpsellEventKind enumerates the append-only events recorded for an upsell
// attempt.
type UpsellEventKind string

const (
	UpsellShown          UpsellEventKind = "shown"
	UpsellAccepted       UpsellEventKind = "accepted"
	UpsellDeclined       UpsellEventKind = "declined"
	UpsellScheduled      UpsellEventKind = "scheduled"
	UpsellError          UpsellEventKind = "error"
	UpsellNothingToOffer UpsellEventKind = "nothing_to_offer"
	UpsellAlreadyOffered UpsellEventKind = "already_offered"
)

// VariantCopy is the A/B copy choice for an upsell offer.
type VariantCopy string

const (
	VariantCopyA VariantCopy = "A"
	VariantCopyB VariantCopy = "B"
)

// VariantPosition is the dispatch timing choice for an upsell offer.
type VariantPosition string

const (
	VariantImmediate VariantPosition = "IMMEDIATE"
	VariantDelay10   VariantPosition = "DELAY10"
)

// Variant is one (copy, position) pair used for A/B testing the upsell.
type Variant struct {
	Copy     VariantCopy
	Position VariantPosition
}

// UpsellEvent is an immutable append-only audit record.
type UpsellEvent struct {
	ID                string
	Tenant            Tenant
	ConversationID    string
	Phone             Phone
	Event             UpsellEventKind
	AddonID           string
	AddonPrice        *float64
	VariantCopy       *VariantCopy
	VariantPosition   *VariantPosition
	AppointmentID     string
	PrimaryServiceID  string
	ProcessingMS      *int64
	ErrorMessage      string
	CreatedAt         time.Time
}

// UpsellConversationState is the at-most-once guard for a single
// conversation's upsell lifecycle.
type UpsellConversationState struct {
	ConversationID string
	AppointmentID  string
	HasShown       bool
	LastEvent      UpsellEventKind
	LastEventAt    time.Time
	LastAddonID    string
	LastVariant    *Variant
}

// ScheduledUpsellJobStatus enumerates the lifecycle of a DELAY10 job.
type ScheduledUpsellJobStatus string

const (
	JobPending    ScheduledUpsellJobStatus = "pending"
	JobProcessing ScheduledUpsellJobStatus = "processing"
	JobCompleted  ScheduledUpsellJobStatus = "completed"
	JobFailed     ScheduledUpsellJobStatus = "failed"
	JobCancelled  ScheduledUpsellJobStatus = "cancelled"
)

// ScheduledUpsellJob is a deferred upsell dispatch, polled by a periodic
// worker once ScheduledFor has elapsed.
type ScheduledUpsellJob struct {
	ID               string
	Tenant           Tenant
	ConversationID   string
	Phone            Phone
	AppointmentID    string
	PrimaryServiceID string
	ScheduledFor     time.Time
	Variant          Variant
	Attempts         int
	MaxAttempts      int
	Status           ScheduledUpsellJobStatus
	LastError        string
}

// AppointmentAttemptStatus enumerates the outcome of a provider booking call.
type AppointmentAttemptStatus string

const (
	AttemptAttempted AppointmentAttemptStatus = "attempted"
	AttemptSuccess   AppointmentAttemptStatus = "success"
	AttemptError     AppointmentAttemptStatus = "error"
)

// AppointmentAttempt audits every provider booking call; IdempotencyKey is
// unique.
type AppointmentAttempt struct {
	Tenant              Tenant
	Phone               Phone
	ServiceID           string
	ProfessionalID      int64
	StartISO            string
	IdempotencyKey      string
	RequestPayload      string
	ResponsePayload     string
	ProviderAppointment string
	Status              AppointmentAttemptStatus
	CreatedAt           time.Time
}

// HMACKeyRing is the {current, previous} pair of webhook signing secrets.
type HMACKeyRing struct {
	Current  string
	Previous string
}
