package conversation

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/jonatasporto/trinks-router/catalog"
	"github.com/jonatasporto/trinks-router/disambiguate"
	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/provider"
	"github.com/jonatasporto/trinks-router/security/breaker"
	"github.com/jonatasporto/trinks-router/statemachine"
	"github.com/jonatasporto/trinks-router/storemem"
	"github.com/jonatasporto/trinks-router/upsell"
)

type fakeProvider struct {
	available bool
}

func (f *fakeProvider) GetServicesPage(ctx context.Context, tenant string, since string, page, limit int) (provider.ServicePage, error) {
	return provider.ServicePage{}, nil
}
func (f *fakeProvider) ValidateAvailability(ctx context.Context, tenant, serviceID string, professionalID *int64, startISO string) (provider.AvailabilityResult, error) {
	return provider.AvailabilityResult{Available: f.available}, nil
}
func (f *fakeProvider) CreateAppointment(ctx context.Context, tenant string, req provider.AppointmentRequest) (provider.AppointmentResult, error) {
	return provider.AppointmentResult{ID: "appt-new"}, nil
}
func (f *fakeProvider) FindClientByPhone(ctx context.Context, tenant, phone string) (*provider.Client, error) {
	return &provider.Client{ID: "client-1", Phone: phone}, nil
}
func (f *fakeProvider) AppendServiceToAppointment(ctx context.Context, tenant, appointmentID, addonID string) error {
	return nil
}

type fakeOutbound struct {
	sent []string
}

func (f *fakeOutbound) SendText(ctx context.Context, phone, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func newTestController(t *testing.T, available bool) (*Controller, *storemem.Store, *fakeOutbound) {
	t.Helper()
	backing := storemem.New()
	catalogSvc := catalog.New(backing.Catalog)
	price := 80.0
	if err := catalogSvc.Upsert(context.Background(), "tenant-1", []domain.CatalogItem{
		{Tenant: "tenant-1", ServiceID: "svc-corte", Name: "Corte Feminino", Category: "Cabelo", DurationMinutes: 60, Price: &price, VisibleToClient: true, Active: true},
	}); err != nil {
		t.Fatalf("seeding catalog: %v", err)
	}

	nlp := disambiguate.New(catalogSvc, disambiguate.DefaultPatternGroups())
	tools := statemachine.NewToolRegistry()
	bookingProvider := &fakeProvider{available: available}
	tools.Register(&statemachine.SearchTopServicesTool{Catalog: catalogSvc})
	tools.Register(&statemachine.ValidateAvailabilityTool{
		Provider: bookingProvider,
		Breaker:  breaker.NewRegistry(breaker.Config{ErrorRateThreshold: 0.5, OpenDuration: time.Second, MinRequests: 5}),
	})
	eval := statemachine.NewEvaluator()

	graph, err := statemachine.DefaultGraph(tools, eval)
	if err != nil {
		t.Fatalf("DefaultGraph: %v", err)
	}

	handoffChecker := func(ctx context.Context, tenant domain.Tenant, phone domain.Phone) (bool, error) {
		flag, err := backing.Handoff.Get(ctx, tenant, phone)
		if err != nil || flag == nil {
			return false, err
		}
		return flag.Active, nil
	}
	rt := statemachine.NewRuntime(graph, eval, tools, nlp, handoffChecker)

	outbound := &fakeOutbound{}
	upsellSvc := upsell.New(upsell.Config{Enabled: true, CopyAWeight: 1, PosImmediateWeight: 1, MaxAttempts: 3}, catalogSvc, backing.Upsell, bookingProvider, outbound, rand.New(rand.NewSource(1)))

	cfg := Config{
		BufferWindow: time.Minute, BufferMaxMessages: 3, ConversationTTL: 2 * time.Hour,
		HistoryCap: 20, LockPruneAfter: time.Hour, LockPruneInterval: 0, CacheCapacity: 1000,
	}
	c := New(cfg, backing.Conversation, backing.Handoff, backing.Buffer, rt, nlp, upsellSvc, bookingProvider, backing.Appointment, outbound)
	return c, backing, outbound
}

func TestProcessMessageBuffersUntilWindowFlushes(t *testing.T) {
	c, _, outbound := newTestController(t, true)
	defer c.Close()

	resp, err := c.ProcessMessage(context.Background(), "tenant-1", "5511999999999", "oi")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.Action != ActionBuffered {
		t.Fatalf("expected buffered action, got %s", resp.Action)
	}
	if len(outbound.sent) != 0 {
		t.Fatal("expected no send before the window flushes")
	}
}

func TestProcessMessageHonorsActiveHandoff(t *testing.T) {
	c, backing, _ := newTestController(t, true)
	defer c.Close()
	ctx := context.Background()

	if err := backing.Handoff.Set(ctx, domain.HandoffFlag{Tenant: "tenant-1", Phone: "5511999999999", Active: true}); err != nil {
		t.Fatalf("seed handoff: %v", err)
	}

	resp, err := c.ProcessMessage(ctx, "tenant-1", "5511999999999", "oi")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.Action != ActionTransferHuman {
		t.Fatalf("expected transfer_human action, got %s", resp.Action)
	}
	if len(resp.Replies) != 1 {
		t.Fatalf("expected one handoff reply, got %v", resp.Replies)
	}

	cc, err := backing.Conversation.Get(ctx, "tenant-1", "5511999999999")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cc != nil {
		t.Fatal("expected no persisted context change while handoff is active")
	}
}

func TestProcessAggregatedFullFlowReachesSchedulingConfirmedAndTriggersUpsell(t *testing.T) {
	c, backing, outbound := newTestController(t, true)
	defer c.Close()
	ctx := context.Background()

	resp := c.processAggregated(ctx, "tenant-1", "5511999999999", "oi")
	if resp.Action != ActionReply || len(resp.Replies) == 0 {
		t.Fatalf("expected a greeting reply, got %+v", resp)
	}

	resp = c.processAggregated(ctx, "tenant-1", "5511999999999", "1")
	if len(resp.Replies) == 0 {
		t.Fatalf("expected a reply after choosing option 1, got %+v", resp)
	}

	cc, err := backing.Conversation.Get(ctx, "tenant-1", "5511999999999")
	if err != nil || cc == nil {
		t.Fatalf("expected a persisted context, err=%v", err)
	}
	cc.Slots.ServiceID = "svc-corte"
	cc.Slots.StartISO = "2026-08-01T10:00:00Z"
	if err := backing.Conversation.Put(ctx, *cc, 2*time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// the controller's in-process cache-through layer would otherwise still
	// hold the pre-edit snapshot from the previous turn's save.
	c.cache.SetWithTTL("tenant-1:5511999999999", *cc, 2*time.Hour)

	resp = c.processAggregated(ctx, "tenant-1", "5511999999999", "quero agendar corte feminino")
	if err != nil {
		t.Fatalf("processAggregated: %v", err)
	}

	final, err := backing.Conversation.Get(ctx, "tenant-1", "5511999999999")
	if err != nil || final == nil {
		t.Fatalf("expected final context, err=%v", err)
	}
	if final.State != "SCHEDULING_CONFIRMED" {
		t.Fatalf("expected SCHEDULING_CONFIRMED, got %s (replies=%v)", final.State, resp.Replies)
	}

	conversationID := "tenant-1:5511999999999"
	state, err := backing.Upsell.GetConversationState(ctx, conversationID)
	if err != nil || state == nil || !state.HasShown {
		t.Fatalf("expected upsell has_shown=true, got %+v (err=%v)", state, err)
	}
	if len(outbound.sent) == 0 {
		t.Fatal("expected at least one outbound send (the upsell offer)")
	}
}

func TestProcessAggregatedResetsToStartOnUnknownState(t *testing.T) {
	c, backing, _ := newTestController(t, true)
	defer c.Close()
	ctx := context.Background()

	if err := backing.Conversation.Put(ctx, domain.ConversationContext{
		Tenant: "tenant-1", Phone: "5511999999999", State: "NOT_A_REAL_STATE",
	}, time.Hour); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp := c.processAggregated(ctx, "tenant-1", "5511999999999", "oi")
	if resp.Action != ActionReply || len(resp.Replies) != 1 {
		t.Fatalf("expected a single apology reply, got %+v", resp)
	}

	cc, err := backing.Conversation.Get(ctx, "tenant-1", "5511999999999")
	if err != nil || cc == nil {
		t.Fatalf("expected a persisted reset context, err=%v", err)
	}
	if cc.State != "START" {
		t.Fatalf("expected state reset to START, got %s", cc.State)
	}
}
