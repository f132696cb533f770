package statemachine

import (
	"context"
	"strconv"
	"sync"

	"github.com/jonatasporto/trinks-router/catalog"
	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/provider"
	"github.com/jonatasporto/trinks-router/security/breaker"
)

// Tool is the duck-typed dispatch target of call_tool, mapped to a registry
// of named implementations — modeled after the teacher's ai/agents Tool
// interface (Name/Run over a tagged input/output shape), simplified to a
// map since the state graph's args are always string-keyed.
type Tool interface {
	Name() string
	Run(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)
}

// ToolRegistry is a name-keyed Tool lookup, guarded the way the teacher's
// ai/agent/registry package guards its factory maps.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry builds an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds tool under its own Name(), overwriting any previous
// registration of the same name.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get looks up a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// --- built-in tools ---

// SearchTopServicesTool implements catalog.search_top_services.
type SearchTopServicesTool struct {
	Catalog *catalog.Service
}

func (t *SearchTopServicesTool) Name() string { return "catalog.search_top_services" }

func (t *SearchTopServicesTool) Run(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	tenant, _ := args["tenant"].(domain.Tenant)
	query, _ := args["query"].(string)
	limit := 3
	switch l := args["limit"].(type) {
	case int:
		limit = l
	case string:
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}
	results, err := t.Catalog.SearchSuggestions(ctx, tenant, query, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]interface{}{
			"service_id": r.ServiceID,
			"name":       r.Name,
			"duration":   r.Duration,
			"price":      r.Price,
		})
	}
	return map[string]interface{}{"items": items}, nil
}

// ValidateAvailabilityTool implements trinks.validate_availability, routing
// the provider call through the per-dependency circuit breaker. When the
// breaker is open, it returns ok=true with confidence "categorical" so the
// conversation can proceed to manual confirmation rather than stalling.
type ValidateAvailabilityTool struct {
	Provider provider.BookingProvider
	Breaker  *breaker.Registry
}

func (t *ValidateAvailabilityTool) Name() string { return "trinks.validate_availability" }

func (t *ValidateAvailabilityTool) Run(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	tenant, _ := args["tenant"].(domain.Tenant)
	serviceID, _ := args["service_id"].(string)
	startISO, _ := args["start_iso"].(string)
	var professionalID *int64
	switch pid := args["professional_id"].(type) {
	case int64:
		if pid != 0 {
			professionalID = &pid
		}
	case string:
		if parsed, err := strconv.ParseInt(pid, 10, 64); err == nil && parsed != 0 {
			professionalID = &parsed
		}
	}

	out, err := t.Breaker.Execute(ctx, "trinks", func(ctx context.Context) (interface{}, error) {
		return t.Provider.ValidateAvailability(ctx, string(tenant), serviceID, professionalID, startISO)
	})
	if err != nil {
		// Breaker open (or any transient failure routed through it) is a
		// soft failure: proceed as "ok" with categorical confidence.
		return map[string]interface{}{"ok": true, "confidence": "categorical"}, nil
	}
	result := out.(provider.AvailabilityResult)
	resp := map[string]interface{}{"ok": result.Available}
	if result.Reason != "" {
		resp["reason"] = result.Reason
	}
	if len(result.SuggestedTimes) > 0 {
		resp["suggested_times"] = result.SuggestedTimes
	}
	return resp, nil
}
