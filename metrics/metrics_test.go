package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRecordedCounters(t *testing.T) {
	e := New()
	e.RecordWebhookRequest("accepted")
	e.RecordStateTransition("SCHEDULING_CONFIRMED")
	e.RecordCatalogSync("success", 5)
	e.RecordUpsellEvent("shown")
	e.RecordHMACInvalid()
	e.RecordAuthDenied("bad_bearer")
	e.RecordRateLimited("phone")
	e.SetBreakerState("trinks", 0)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"trinks_router_webhook_requests_total",
		"trinks_router_state_transitions_total",
		"trinks_router_catalog_sync_runs_total",
		"trinks_router_catalog_sync_items_total 5",
		"trinks_router_upsell_events_total",
		"trinks_router_hmac_invalid_total 1",
		"trinks_router_auth_denied_total",
		"trinks_router_rate_limited_total",
		"trinks_router_breaker_state",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected exposition to contain %q, got:\n%s", want, body)
		}
	}
}
