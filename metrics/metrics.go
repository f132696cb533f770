// Package metrics exports the core's operational counters in Prometheus
// format, grounded on the teacher's ai/metrics Prometheus exporter idiom:
// one struct holding every registered collector, constructed once at
// startup and threaded through the components that record against it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter holds every metric the core's components record against.
type Exporter struct {
	registry *prometheus.Registry

	webhookRequests  *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec
	catalogSyncRuns  *prometheus.CounterVec
	catalogSyncItems prometheus.Counter
	upsellEvents     *prometheus.CounterVec
	hmacInvalid      prometheus.Counter
	authDenied       *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
}

// New builds and registers every collector against a fresh registry.
func New() *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry()}

	e.webhookRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trinks_router",
		Name:      "webhook_requests_total",
		Help:      "Total webhook requests received, by outcome.",
	}, []string{"outcome"})

	e.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trinks_router",
		Name:      "state_transitions_total",
		Help:      "Total conversation state machine transitions, by target state.",
	}, []string{"state"})

	e.catalogSyncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trinks_router",
		Name:      "catalog_sync_runs_total",
		Help:      "Total catalog sync runs, by outcome.",
	}, []string{"outcome"})

	e.catalogSyncItems = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trinks_router",
		Name:      "catalog_sync_items_total",
		Help:      "Total catalog items upserted across all sync runs.",
	})

	e.upsellEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trinks_router",
		Name:      "upsell_events_total",
		Help:      "Total upsell lifecycle events, by kind.",
	}, []string{"event"})

	e.hmacInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trinks_router",
		Name:      "hmac_invalid_total",
		Help:      "Total webhook requests rejected for an invalid HMAC signature.",
	})

	e.authDenied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trinks_router",
		Name:      "auth_denied_total",
		Help:      "Total admin requests rejected, by reason.",
	}, []string{"reason"})

	e.rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trinks_router",
		Name:      "rate_limited_total",
		Help:      "Total requests rejected by the rate limiter, by source kind.",
	}, []string{"source"})

	e.breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "trinks_router",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per dependency (0=closed, 1=half-open, 2=open).",
	}, []string{"dependency"})

	e.registry.MustRegister(
		e.webhookRequests, e.stateTransitions, e.catalogSyncRuns, e.catalogSyncItems,
		e.upsellEvents, e.hmacInvalid, e.authDenied, e.rateLimited, e.breakerState,
	)
	return e
}

func (e *Exporter) RecordWebhookRequest(outcome string) {
	e.webhookRequests.WithLabelValues(outcome).Inc()
}

func (e *Exporter) RecordStateTransition(state string) {
	e.stateTransitions.WithLabelValues(state).Inc()
}

func (e *Exporter) RecordCatalogSync(outcome string, itemsUpserted int) {
	e.catalogSyncRuns.WithLabelValues(outcome).Inc()
	if itemsUpserted > 0 {
		e.catalogSyncItems.Add(float64(itemsUpserted))
	}
}

func (e *Exporter) RecordUpsellEvent(event string) {
	e.upsellEvents.WithLabelValues(event).Inc()
}

func (e *Exporter) RecordHMACInvalid() {
	e.hmacInvalid.Inc()
}

func (e *Exporter) RecordAuthDenied(reason string) {
	e.authDenied.WithLabelValues(reason).Inc()
}

func (e *Exporter) RecordRateLimited(source string) {
	e.rateLimited.WithLabelValues(source).Inc()
}

// SetBreakerState records a dependency's current breaker state as a gauge,
// using gobreaker's own State ordering (StateClosed=0, StateHalfOpen=1,
// StateOpen=2) so operators can graph it directly.
func (e *Exporter) SetBreakerState(dependency string, state int) {
	e.breakerState.WithLabelValues(dependency).Set(float64(state))
}

// Handler serves the Prometheus text exposition format for GET /metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
