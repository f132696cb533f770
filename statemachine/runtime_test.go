package statemachine

import (
	"context"
	"testing"
	"time"

	"github.com/jonatasporto/trinks-router/catalog"
	"github.com/jonatasporto/trinks-router/disambiguate"
	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/provider"
	"github.com/jonatasporto/trinks-router/security/breaker"
	"github.com/jonatasporto/trinks-router/storemem"
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
	return provider.AppointmentResult{}, nil
}

func (f *fakeProvider) FindClientByPhone(ctx context.Context, tenant, phone string) (*provider.Client, error) {
	return nil, nil
}

func (f *fakeProvider) AppendServiceToAppointment(ctx context.Context, tenant, appointmentID, addonID string) error {
	return nil
}

func newTestRuntime(t *testing.T, available bool, handoffActive bool) (*Runtime, *domain.ConversationContext) {
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
	tools := NewToolRegistry()
	tools.Register(&SearchTopServicesTool{Catalog: catalogSvc})
	tools.Register(&ValidateAvailabilityTool{
		Provider: &fakeProvider{available: available},
		Breaker:  breaker.NewRegistry(breaker.Config{ErrorRateThreshold: 0.5, OpenDuration: time.Second, MinRequests: 5}),
	})
	eval := NewEvaluator()

	graph, err := DefaultGraph(tools, eval)
	if err != nil {
		t.Fatalf("DefaultGraph: %v", err)
	}

	handoff := func(ctx context.Context, tenant domain.Tenant, phone domain.Phone) (bool, error) {
		return handoffActive, nil
	}
	rt := NewRuntime(graph, eval, tools, nlp, handoff)

	cc := &domain.ConversationContext{Tenant: "tenant-1", Phone: "5511999999999", State: "START"}
	return rt, cc
}

func TestEnterStartGreetsWhenNoHandoff(t *testing.T) {
	rt, cc := newTestRuntime(t, true, false)
	result, err := rt.Enter(context.Background(), cc)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if cc.State != "MENU_WAITING" {
		t.Fatalf("expected MENU_WAITING, got %s", cc.State)
	}
	if len(result.Replies) != 1 {
		t.Fatalf("expected one greeting reply, got %v", result.Replies)
	}
}

func TestEnterStartHandsOffWhenOverrideActive(t *testing.T) {
	rt, cc := newTestRuntime(t, true, true)
	result, err := rt.Enter(context.Background(), cc)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if cc.State != "HUMAN_HANDOFF" {
		t.Fatalf("expected HUMAN_HANDOFF, got %s", cc.State)
	}
	if !result.Handoff {
		t.Fatal("expected Handoff=true")
	}
}

func TestExplicitServiceFlowConfirmsWhenAvailable(t *testing.T) {
	rt, cc := newTestRuntime(t, true, false)
	if _, err := rt.Enter(context.Background(), cc); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	cc.Vars = map[string]bool{"option_1": true}
	cc.Slots.ServiceID = "svc-corte"
	cc.Slots.StartISO = "2026-08-01T10:00:00Z"

	result, err := rt.Step(context.Background(), cc, "quero agendar corte feminino")
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cc.State != "SCHEDULING_CONFIRMED" {
		t.Fatalf("expected SCHEDULING_CONFIRMED, got %s (replies=%v)", cc.State, result.Replies)
	}
}

func TestAmbiguousQueryStaysInValidateAndOffersSuggestions(t *testing.T) {
	rt, cc := newTestRuntime(t, true, false)
	if _, err := rt.Enter(context.Background(), cc); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	cc.Vars = map[string]bool{"option_1": true}
	cc.Slots.ServiceID = ""
	cc.Slots.RawQuery = "corte"

	result, err := rt.Step(context.Background(), cc, "corte")
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cc.State != "VALIDATE_BEFORE_CONFIRM" {
		t.Fatalf("expected to stay in VALIDATE_BEFORE_CONFIRM, got %s", cc.State)
	}
	if len(result.Replies) == 0 {
		t.Fatal("expected a clarify_service reply")
	}
	if cc.ToolResults["top3"] == nil {
		t.Fatal("expected top3 tool result to be saved")
	}
}

func TestUnavailableSlotStaysInValidate(t *testing.T) {
	rt, cc := newTestRuntime(t, false, false)
	if _, err := rt.Enter(context.Background(), cc); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	cc.Vars = map[string]bool{"option_1": true}
	cc.Slots.ServiceID = "svc-corte"
	cc.Slots.StartISO = "2026-08-01T10:00:00Z"

	result, err := rt.Step(context.Background(), cc, "quero agendar corte feminino")
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cc.State != "VALIDATE_BEFORE_CONFIRM" {
		t.Fatalf("expected to stay in VALIDATE_BEFORE_CONFIRM on unavailable slot, got %s", cc.State)
	}
	if len(result.Replies) != 2 {
		t.Fatalf("expected validation_failed + clarify_service replies, got %v", result.Replies)
	}
}
