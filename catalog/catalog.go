package catalog

import (
	"context"
	"time"

	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/store"
)

// Service is C1's public operations, wrapping a store.CatalogStore with the
// normalization and clamping rules the specification mandates at the API
// boundary rather than inside the storage layer.
type Service struct {
	store store.CatalogStore
}

// New builds a catalog Service over the given backing store.
func New(backing store.CatalogStore) *Service {
	return &Service{store: backing}
}

// Upsert idempotently writes items by (tenant, service-id, professional-id),
// normalizing name and category before the write.
func (s *Service) Upsert(ctx context.Context, tenant domain.Tenant, items []domain.CatalogItem) error {
	for i := range items {
		items[i].NormalizedName = Normalize(items[i].Name)
		items[i].NormalizedCategory = Normalize(items[i].Category)
	}
	return s.store.Upsert(ctx, tenant, items)
}

// clampLimit bounds n to [lo, hi].
func clampLimit(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// SearchSuggestions normalizes term, clamps limit to [1,10], and returns
// grouped, price-ascending (nulls last) then name-ascending suggestions.
func (s *Service) SearchSuggestions(ctx context.Context, tenant domain.Tenant, term string, limit int) ([]domain.CatalogSuggestion, error) {
	limit = clampLimit(limit, 1, 10)
	return s.store.SearchSuggestions(ctx, tenant, Normalize(term), limit)
}

// ExistsForBooking reports whether a bookable row exists for the triple;
// professionalID == nil matches any professional.
func (s *Service) ExistsForBooking(ctx context.Context, tenant domain.Tenant, serviceID string, professionalID *int64) (bool, error) {
	return s.store.ExistsForBooking(ctx, tenant, serviceID, professionalID)
}

// TopNByCategory30d returns the n most-booked services (last 30 days) under
// a normalized category, name-ascending on ties.
func (s *Service) TopNByCategory30d(ctx context.Context, tenant domain.Tenant, category string, n int) ([]domain.CatalogSuggestion, error) {
	return s.store.TopNByCategory30d(ctx, tenant, Normalize(category), n)
}

// IsCategoryGeneric reports whether term exactly matches a known category
// with at least two distinct active/visible services under it.
func (s *Service) IsCategoryGeneric(ctx context.Context, tenant domain.Tenant, term string) (bool, error) {
	return s.store.IsCategoryGeneric(ctx, tenant, Normalize(term))
}

// RecommendedAddon returns the catalog's upsell pick for a primary service,
// or nil if none is configured.
func (s *Service) RecommendedAddon(ctx context.Context, tenant domain.Tenant, primaryServiceID string) (*domain.CatalogSuggestion, error) {
	return s.store.RecommendedAddon(ctx, tenant, primaryServiceID)
}

// RecordBookingSuccess feeds the 30-day booking-count ranking used by
// TopNByCategory30d.
func (s *Service) RecordBookingSuccess(ctx context.Context, tenant domain.Tenant, serviceID string) error {
	return s.store.RecordBookingSuccess(ctx, tenant, serviceID, time.Now())
}
