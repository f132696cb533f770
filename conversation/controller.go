// Package conversation implements C6: the public ProcessMessage entry point
// that orchestrates the message buffer, the state machine runtime, and the
// upsell scheduler under a per-phone logical lock, matching the teacher's
// "own the whole request lifecycle under a keyed lock" controller idiom.
package conversation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonatasporto/trinks-router/buffer"
	"github.com/jonatasporto/trinks-router/disambiguate"
	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/internal/keyedmutex"
	"github.com/jonatasporto/trinks-router/provider"
	"github.com/jonatasporto/trinks-router/statemachine"
	"github.com/jonatasporto/trinks-router/store"
	"github.com/jonatasporto/trinks-router/store/cache"
	"github.com/jonatasporto/trinks-router/upsell"
)

// Action classifies a Response for the caller (httpapi handler or test),
// mirroring the specification's action enum.
type Action string

const (
	ActionReply         Action = "reply"
	ActionBuffered      Action = "buffered"
	ActionTransferHuman Action = "transfer_human"
)

// Response is ProcessMessage's return shape.
type Response struct {
	Replies []string
	Action  Action
}

const terminalState = "SCHEDULING_CONFIRMED"

// Config tunes the controller's buffering, persistence, and lock-pruning
// behavior; defaults mirror the specification's configuration table.
type Config struct {
	BufferWindow      time.Duration
	BufferMaxMessages int
	ConversationTTL   time.Duration
	HistoryCap        int
	LockPruneAfter    time.Duration
	LockPruneInterval time.Duration
	CacheCapacity     int
}

// Controller is C6's public operations.
type Controller struct {
	cfg Config

	conv    store.ConversationStore
	handoff store.HandoffStore

	runtime *statemachine.Runtime
	nlp     *disambiguate.Service
	upsell  *upsell.Service

	provider     provider.BookingProvider
	appointments store.AppointmentAuditStore
	outbound     provider.Outbound

	buf   *buffer.Buffer
	locks *keyedmutex.Map
	cache *cache.TTLCache[string, domain.ConversationContext]

	handoffTemplate string
}

// New wires a Controller. bufferStore backs C3's crash-recovery persistence;
// onFlush (the buffer's eventual, possibly-asynchronous callback) is bound
// to the controller's own processAggregated method, since Buffer.Append
// never synchronously returns Ready=true on its non-degraded path — the
// actual reply send happens from inside that callback via outbound.
func New(
	cfg Config,
	conv store.ConversationStore,
	handoff store.HandoffStore,
	bufferStore store.BufferStore,
	rt *statemachine.Runtime,
	nlp *disambiguate.Service,
	upsellSvc *upsell.Service,
	bookingProvider provider.BookingProvider,
	appointments store.AppointmentAuditStore,
	outbound provider.Outbound,
) *Controller {
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 20
	}
	handoffTemplate := "Um atendente humano vai continuar por aqui."
	if msg, ok := rt.Graph().MessageByName("human_handoff_active"); ok {
		handoffTemplate = msg
	}

	c := &Controller{
		cfg:             cfg,
		conv:            conv,
		handoff:         handoff,
		runtime:         rt,
		nlp:             nlp,
		upsell:          upsellSvc,
		provider:        bookingProvider,
		appointments:    appointments,
		outbound:        outbound,
		locks:           keyedmutex.New(cfg.LockPruneAfter, cfg.LockPruneInterval),
		cache:           cache.New[string, domain.ConversationContext](cfg.CacheCapacity, cfg.ConversationTTL),
		handoffTemplate: handoffTemplate,
	}
	c.buf = buffer.New(cfg.BufferWindow, cfg.BufferMaxMessages, bufferStore, c.onFlush)
	return c
}

// Close releases the controller's background goroutines (keyed-mutex
// pruning), mirroring the teacher's Store.Close() idiom for long-lived
// components.
func (c *Controller) Close() { c.locks.Close() }

// ProcessMessage is the public entry point: webhook → security envelope
// (handled upstream) → handoff check → message buffer → (eventually) the
// state machine. A Ready=false buffer result yields ActionBuffered
// immediately; the aggregated reply, once the window flushes, is delivered
// asynchronously through outbound from onFlush rather than through this
// call's return value.
func (c *Controller) ProcessMessage(ctx context.Context, tenant domain.Tenant, phone domain.Phone, text string) (Response, error) {
	flag, err := c.handoff.Get(ctx, tenant, phone)
	if err != nil {
		return Response{}, err
	}
	if flag != nil && flag.Active {
		return Response{Replies: []string{c.handoffTemplate}, Action: ActionTransferHuman}, nil
	}

	result := c.buf.Append(ctx, tenant, phone, text)
	if !result.Ready {
		return Response{Action: ActionBuffered}, nil
	}
	// Degraded pass-through: the buffer never withheld this fragment, so
	// respond synchronously instead of waiting for a flush that won't come.
	return c.processAggregated(ctx, tenant, phone, result.AggregatedText), nil
}

// onFlush is the Buffer's FlushFunc, invoked once a window closes (by timer
// or max_messages). It runs the full pipeline and delivers replies itself,
// since nothing is synchronously blocked on Append waiting for this text.
func (c *Controller) onFlush(tenant domain.Tenant, phone domain.Phone, aggregatedText string) {
	ctx := context.Background()
	resp := c.processAggregated(ctx, tenant, phone, aggregatedText)
	for _, reply := range resp.Replies {
		if err := c.outbound.SendText(ctx, string(phone), reply); err != nil {
			slog.Error("conversation: failed to send reply", "error", err)
		}
	}
}

// processAggregated runs the per-phone critical section: load, step, and
// persist a ConversationContext. Any error is swallowed into a generic
// apology reply with the context reset to START, per the specification's
// error policy — the input is never retried automatically.
func (c *Controller) processAggregated(ctx context.Context, tenant domain.Tenant, phone domain.Phone, aggregatedText string) Response {
	unlock := c.locks.Lock(string(tenant) + ":" + string(phone))
	defer unlock()

	cc, loadErr := c.load(ctx, tenant, phone)
	if loadErr != nil {
		slog.Warn("conversation: failed to load context, starting fresh", "error", loadErr)
		cc = freshContext(tenant, phone)
	}

	replies, err := c.step(ctx, cc, aggregatedText)
	if err != nil {
		slog.Error("conversation: step failed, resetting to START", "error", err)
		reset := freshContext(tenant, phone)
		if putErr := c.save(ctx, reset); putErr != nil {
			slog.Error("conversation: failed to persist reset context", "error", putErr)
		}
		return Response{Replies: []string{"Desculpe, tive um problema. Pode repetir, por favor?"}, Action: ActionReply}
	}

	appendHistory(cc, aggregatedText, replies, c.cfg.HistoryCap)
	if err := c.save(ctx, cc); err != nil {
		slog.Error("conversation: failed to persist context", "error", err)
	}

	return Response{Replies: replies, Action: ActionReply}
}

// step runs one turn of the state machine: optional first-time Enter(START),
// then the NLP classification feeding the condition vars the graph reads,
// then Step itself, finishing with the upsell hook on first arrival at the
// terminal state.
func (c *Controller) step(ctx context.Context, cc *domain.ConversationContext, aggregatedText string) ([]string, error) {
	var replies []string

	if cc.State == "" {
		cc.State = "START"
	}
	if cc.State == "START" {
		entered, err := c.runtime.Enter(ctx, cc)
		if err != nil {
			return nil, err
		}
		replies = append(replies, entered.Replies...)
	}

	conversationID := string(cc.Tenant) + ":" + string(cc.Phone)
	consumed, err := c.upsell.InterceptResponse(ctx, cc.Tenant, conversationID, cc.Phone, aggregatedText)
	if err != nil {
		return nil, err
	}
	if consumed {
		return replies, nil
	}

	c.applyNLPVars(cc, aggregatedText)

	prevState := cc.State
	result, err := c.runtime.Step(ctx, cc, aggregatedText)
	if err != nil {
		return nil, err
	}
	replies = append(replies, result.Replies...)

	if prevState != terminalState && cc.State == terminalState {
		c.onBookingConfirmed(ctx, cc)
	}
	return replies, nil
}

// applyNLPVars classifies aggregatedText and sets the four intent flags the
// default graph's conditions read, clearing stale flags from a prior turn
// each time so a generic follow-up message doesn't replay an old intent.
func (c *Controller) applyNLPVars(cc *domain.ConversationContext, aggregatedText string) {
	if cc.Vars == nil {
		cc.Vars = make(map[string]bool)
	}
	cc.Vars["option_1"] = false
	cc.Vars["option_2"] = false
	cc.Vars["explicit_schedule"] = false
	cc.Vars["ambiguous_schedule"] = false

	result := c.nlp.Analyze(aggregatedText)
	switch result.Kind {
	case disambiguate.KindOption1:
		cc.Vars["option_1"] = true
	case disambiguate.KindOption2:
		cc.Vars["option_2"] = true
	case disambiguate.KindExplicitSchedule:
		cc.Vars["explicit_schedule"] = true
	case disambiguate.KindAmbiguousSchedule:
		cc.Vars["ambiguous_schedule"] = true
	}
}

// onBookingConfirmed creates the provider appointment (idempotently audited)
// and triggers C7. Booking creation failures are logged but never block the
// upsell hook, matching the specification's emphasis on SCHEDULING_CONFIRMED
// itself, rather than the booking call, as the upsell trigger.
func (c *Controller) onBookingConfirmed(ctx context.Context, cc *domain.ConversationContext) {
	conversationID := string(cc.Tenant) + ":" + string(cc.Phone)
	appointmentID := c.ensureAppointment(ctx, cc)

	if err := c.upsell.OnBookingConfirmed(ctx, cc.Tenant, conversationID, cc.Phone, appointmentID, cc.Slots.ServiceID, nil); err != nil {
		slog.Error("conversation: upsell hook failed", "error", err)
	}
}

func (c *Controller) ensureAppointment(ctx context.Context, cc *domain.ConversationContext) string {
	clientID := ""
	if client, err := c.provider.FindClientByPhone(ctx, string(cc.Tenant), string(cc.Phone)); err == nil && client != nil {
		clientID = client.ID
	}

	key := idempotencyKey(clientID, cc.Slots.ServiceID, cc.Slots.StartISO, cc.Slots.ProfessionalID)
	existing, err := c.appointments.FindByIdempotencyKey(ctx, key)
	if err == nil && existing != nil && existing.Status == domain.AttemptSuccess {
		return existing.ProviderAppointment
	}

	attempt := domain.AppointmentAttempt{
		Tenant: cc.Tenant, Phone: cc.Phone, ServiceID: cc.Slots.ServiceID,
		ProfessionalID: cc.Slots.ProfessionalID, StartISO: cc.Slots.StartISO,
		IdempotencyKey: key, Status: domain.AttemptAttempted, CreatedAt: time.Now(),
	}
	if err := c.appointments.Insert(ctx, attempt); err != nil {
		slog.Error("conversation: failed to audit appointment attempt", "error", err)
	}

	var professionalID *int64
	if cc.Slots.ProfessionalID != 0 {
		professionalID = &cc.Slots.ProfessionalID
	}

	res, err := c.provider.CreateAppointment(ctx, string(cc.Tenant), provider.AppointmentRequest{
		ServiceID: cc.Slots.ServiceID, ClientID: clientID, StartISO: cc.Slots.StartISO,
		Confirmed: true, ProfessionalID: professionalID,
	})
	if err != nil {
		attempt.Status = domain.AttemptError
		attempt.ResponsePayload = err.Error()
		if updErr := c.appointments.Update(ctx, attempt); updErr != nil {
			slog.Error("conversation: failed to record appointment failure", "error", updErr)
		}
		return ""
	}

	attempt.Status = domain.AttemptSuccess
	attempt.ProviderAppointment = res.ID
	if updErr := c.appointments.Update(ctx, attempt); updErr != nil {
		slog.Error("conversation: failed to record appointment success", "error", updErr)
	}
	return res.ID
}

// idempotencyKey hashes (client ID, service ID, start time, professional ID)
// per the booking-attempt uniqueness invariant; professionalID == 0 ("any
// professional") hashes as the literal "any" rather than "0" so it can never
// collide with a real numeric ID.
func idempotencyKey(clientID, serviceID, startISO string, professionalID int64) string {
	professional := "any"
	if professionalID != 0 {
		professional = fmt.Sprintf("%d", professionalID)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", clientID, serviceID, startISO, professional)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// load implements the cache-through read: in-process TTLCache first, durable
// ConversationStore on miss. A nil result (never seen before) or a load
// error both yield a fresh context; the caller decides which.
func (c *Controller) load(ctx context.Context, tenant domain.Tenant, phone domain.Phone) (*domain.ConversationContext, error) {
	key := string(tenant) + ":" + string(phone)
	if cached, ok := c.cache.Get(key); ok {
		cp := cached
		return &cp, nil
	}

	stored, err := c.conv.Get(ctx, tenant, phone)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		fresh := freshContext(tenant, phone)
		return fresh, nil
	}
	c.cache.SetWithTTL(key, *stored, c.cfg.ConversationTTL)
	return stored, nil
}

func (c *Controller) save(ctx context.Context, cc *domain.ConversationContext) error {
	cc.LastActivity = time.Now()
	key := string(cc.Tenant) + ":" + string(cc.Phone)
	c.cache.SetWithTTL(key, *cc, c.cfg.ConversationTTL)
	return c.conv.Put(ctx, *cc, c.cfg.ConversationTTL)
}

func freshContext(tenant domain.Tenant, phone domain.Phone) *domain.ConversationContext {
	return &domain.ConversationContext{
		Tenant: tenant, Phone: phone, State: "START",
		Vars: make(map[string]bool), LastActivity: time.Now(),
	}
}

func appendHistory(cc *domain.ConversationContext, userText string, replies []string, historyCap int) {
	now := time.Now()
	cc.History = append(cc.History, domain.HistoryEntry{Role: "user", Text: userText, At: now})
	for _, r := range replies {
		cc.History = append(cc.History, domain.HistoryEntry{Role: "assistant", Text: r, At: now})
	}
	if len(cc.History) > historyCap {
		cc.History = cc.History[len(cc.History)-historyCap:]
	}
}
