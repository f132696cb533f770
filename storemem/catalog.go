// Package storemem provides in-memory reference implementations of every
// store interface, used by every component's unit tests and sufficient for
// a single-instance deployment, mirroring the teacher's store.Store facade
// pattern (store/store.go) minus the driver indirection.
package storemem

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonatasporto/trinks-router/domain"
)

type catalogKey struct {
	tenant         domain.Tenant
	serviceID      string
	professionalID int64
}

// CatalogStore is an in-memory store.CatalogStore.
type CatalogStore struct {
	mu    sync.RWMutex
	items map[catalogKey]domain.CatalogItem
	// bookingEvents[tenant][serviceID] = booking times; TopNByCategory30d
	// counts those within the rolling 30-day window
	bookingEvents map[domain.Tenant]map[string][]time.Time
}

// NewCatalogStore builds an empty in-memory catalog store.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		items:         make(map[catalogKey]domain.CatalogItem),
		bookingEvents: make(map[domain.Tenant]map[string][]time.Time),
	}
}

func (s *CatalogStore) Upsert(ctx context.Context, tenant domain.Tenant, items []domain.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		it.Tenant = tenant
		k := catalogKey{tenant, it.ServiceID, it.ProfessionalID}
		s.items[k] = it
	}
	return nil
}

func (s *CatalogStore) SearchSuggestions(ctx context.Context, tenant domain.Tenant, normalizedTerm string, limit int) ([]domain.CatalogSuggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type agg struct {
		name               string
		category           string
		normalizedCategory string
		duration           int
		price              *float64
	}
	byService := make(map[string]agg)
	for k, it := range s.items {
		if k.tenant != tenant || !it.Active || !it.VisibleToClient {
			continue
		}
		if normalizedTerm != "" && !strings.Contains(it.NormalizedName, normalizedTerm) {
			continue
		}
		cur, ok := byService[it.ServiceID]
		if !ok {
			byService[it.ServiceID] = agg{name: it.Name, category: it.Category, normalizedCategory: it.NormalizedCategory, duration: it.DurationMinutes, price: it.Price}
			continue
		}
		if it.Name < cur.name {
			cur.name = it.Name
			cur.category = it.Category
			cur.normalizedCategory = it.NormalizedCategory
		}
		if it.DurationMinutes < cur.duration {
			cur.duration = it.DurationMinutes
		}
		if lowerPrice(it.Price, cur.price) {
			cur.price = it.Price
		}
		byService[it.ServiceID] = cur
	}

	out := make([]domain.CatalogSuggestion, 0, len(byService))
	for sid, a := range byService {
		out = append(out, domain.CatalogSuggestion{
			ServiceID: sid, Name: a.name, Category: a.category, NormalizedCategory: a.normalizedCategory,
			Duration: a.duration, Price: a.price,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Price, out[j].Price
		if pi == nil && pj != nil {
			return false
		}
		if pi != nil && pj == nil {
			return true
		}
		if pi != nil && pj != nil && *pi != *pj {
			return *pi < *pj
		}
		return out[i].Name < out[j].Name
	})
	if limit > len(out) {
		limit = len(out)
	}
	return out[:limit], nil
}

func lowerPrice(candidate, current *float64) bool {
	if candidate == nil {
		return false
	}
	if current == nil {
		return true
	}
	return *candidate < *current
}

func (s *CatalogStore) ExistsForBooking(ctx context.Context, tenant domain.Tenant, serviceID string, professionalID *int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if professionalID != nil {
		_, ok := s.items[catalogKey{tenant, serviceID, *professionalID}]
		return ok, nil
	}
	for k := range s.items {
		if k.tenant == tenant && k.serviceID == serviceID {
			return true, nil
		}
	}
	return false, nil
}

func (s *CatalogStore) TopNByCategory30d(ctx context.Context, tenant domain.Tenant, normalizedCategory string, n int) ([]domain.CatalogSuggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	counts := make(map[string]int)
	if byService, ok := s.bookingEvents[tenant]; ok {
		for sid, times := range byService {
			for _, t := range times {
				if t.After(cutoff) {
					counts[sid]++
				}
			}
		}
	}

	type row struct {
		sug   domain.CatalogSuggestion
		count int
	}
	var rows []row
	seen := make(map[string]bool)
	for k, it := range s.items {
		if k.tenant != tenant || !it.Active || !it.VisibleToClient {
			continue
		}
		if it.NormalizedCategory != normalizedCategory {
			continue
		}
		if seen[it.ServiceID] {
			continue
		}
		seen[it.ServiceID] = true
		rows = append(rows, row{
			sug: domain.CatalogSuggestion{
				ServiceID: it.ServiceID, Name: it.Name, Category: it.Category, NormalizedCategory: it.NormalizedCategory,
				Duration: it.DurationMinutes, Price: it.Price,
			},
			count: counts[it.ServiceID],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].sug.Name < rows[j].sug.Name
	})
	if n > len(rows) {
		n = len(rows)
	}
	out := make([]domain.CatalogSuggestion, n)
	for i := 0; i < n; i++ {
		out[i] = rows[i].sug
	}
	return out, nil
}

func (s *CatalogStore) IsCategoryGeneric(ctx context.Context, tenant domain.Tenant, normalizedTerm string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	distinct := make(map[string]bool)
	for k, it := range s.items {
		if k.tenant != tenant || !it.Active || !it.VisibleToClient {
			continue
		}
		if it.NormalizedCategory == normalizedTerm {
			distinct[it.ServiceID] = true
		}
	}
	return len(distinct) >= 2, nil
}

func (s *CatalogStore) RecordBookingSuccess(ctx context.Context, tenant domain.Tenant, serviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byService, ok := s.bookingEvents[tenant]
	if !ok {
		byService = make(map[string][]time.Time)
		s.bookingEvents[tenant] = byService
	}
	byService[serviceID] = append(byService[serviceID], at)
	return nil
}

func (s *CatalogStore) CountAll(ctx context.Context, tenant domain.Tenant) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.items {
		if k.tenant == tenant {
			n++
		}
	}
	return n, nil
}

func (s *CatalogStore) RecommendedAddon(ctx context.Context, tenant domain.Tenant, primaryServiceID string) (*domain.CatalogSuggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var primary *domain.CatalogItem
	for k, it := range s.items {
		if k.tenant == tenant && it.ServiceID == primaryServiceID {
			cp := it
			primary = &cp
			break
		}
	}
	if primary == nil {
		return nil, nil
	}
	var best *domain.CatalogItem
	for k, it := range s.items {
		if k.tenant != tenant || !it.Active || !it.VisibleToClient {
			continue
		}
		if it.ServiceID == primaryServiceID {
			continue
		}
		if it.NormalizedCategory != primary.NormalizedCategory {
			continue
		}
		cp := it
		if best == nil || lowerPrice(cp.Price, best.Price) {
			best = &cp
		}
	}
	if best == nil {
		return nil, nil
	}
	return &domain.CatalogSuggestion{
		ServiceID: best.ServiceID, Name: best.Name, Category: best.Category, NormalizedCategory: best.NormalizedCategory,
		Duration: best.DurationMinutes, Price: best.Price,
	}, nil
}
