// Package catalogsync implements C2: incremental pull of the provider
// catalog into the local mirror, with a per-tenant fail-fast lock and a
// daily drift report.
package catalogsync

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jonatasporto/trinks-router/catalog"
	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/provider"
	"github.com/jonatasporto/trinks-router/store"
)

// ErrSyncInProgress is returned by TriggerFullSync when another run is
// already active for the tenant.
var ErrSyncInProgress = errors.New("sync in progress")

// Result is the outcome of a successful TriggerFullSync.
type Result struct {
	OK          bool
	NewWatermark time.Time
}

// DiffReport is C2's drift report between the provider catalog and the
// local mirror.
type DiffReport struct {
	TotalProvider     int
	TotalLocal        int
	MissingInLocal    int
	ExtraInLocal      int
	Duplicates        int
	Phantoms          []string
	DuplicatesDetail  []string
}

// Service is C2's public operations.
//
// The in-flight guard is a hand-rolled CAS-guarded map, deliberately not
// golang.org/x/sync/singleflight: singleflight coalesces concurrent callers
// onto one shared result, but TriggerFullSync must make the *second* caller
// fail immediately with "sync in progress" — the opposite contract.
type Service struct {
	catalog   *catalog.Service
	provider  provider.BookingProvider
	watermark store.SyncWatermarkStore
	lock      store.SyncLockStore
	pageSize  int
	lockTTL   time.Duration

	inFlight tenantGuard
}

// New builds a catalog-sync Service.
func New(cat *catalog.Service, prov provider.BookingProvider, watermark store.SyncWatermarkStore, lock store.SyncLockStore, pageSize int, lockTTL time.Duration) *Service {
	return &Service{
		catalog:   cat,
		provider:  prov,
		watermark: watermark,
		lock:      lock,
		pageSize:  pageSize,
		lockTTL:   lockTTL,
	}
}

// TriggerFullSync pulls the provider catalog incrementally from sinceISO
// (falling back to the persisted watermark, then the epoch), normalizing and
// upserting every page, and advances the watermark only on normal
// completion.
func (s *Service) TriggerFullSync(ctx context.Context, tenant domain.Tenant, sinceISO string) (Result, error) {
	if !s.inFlight.tryEnter(tenant) {
		return Result{}, ErrSyncInProgress
	}
	defer s.inFlight.exit(tenant)

	acquired, err := s.lock.Acquire(ctx, tenant, s.lockTTL)
	if err != nil {
		return Result{}, errors.Wrap(err, "acquiring sync lock")
	}
	if !acquired {
		return Result{}, ErrSyncInProgress
	}
	defer s.lock.Release(ctx, tenant)

	start, err := s.resolveStart(ctx, tenant, sinceISO)
	if err != nil {
		return Result{}, err
	}

	maxSeen := start
	page := 0
	for {
		pageResult, err := s.provider.GetServicesPage(ctx, string(tenant), start.Format(time.RFC3339), page, s.pageSize)
		if err != nil {
			return Result{}, errors.Wrap(err, "fetching catalog page")
		}

		items := make([]domain.CatalogItem, 0, len(pageResult.Items))
		for _, it := range pageResult.Items {
			updatedAt, parseErr := time.Parse(time.RFC3339, it.UpdatedAt)
			if parseErr == nil && updatedAt.After(maxSeen) {
				maxSeen = updatedAt
			}
			items = append(items, domain.CatalogItem{
				ServiceID:       it.ServiceID,
				ProfessionalID:  it.ProfessionalID,
				Name:            it.Name,
				Category:        it.Category,
				DurationMinutes: it.DurationMinutes,
				Price:           it.Price,
				VisibleToClient: it.VisibleToClient,
				Active:          it.Active,
				LastSyncedAt:    time.Now(),
			})
		}
		if len(items) > 0 {
			if err := s.catalog.Upsert(ctx, tenant, items); err != nil {
				return Result{}, errors.Wrap(err, "upserting catalog page")
			}
		}

		if !pageResult.HasMore {
			break
		}
		page = pageResult.NextPage
	}

	if err := s.watermark.Set(ctx, tenant, maxSeen); err != nil {
		return Result{}, errors.Wrap(err, "persisting watermark")
	}
	return Result{OK: true, NewWatermark: maxSeen}, nil
}

func (s *Service) resolveStart(ctx context.Context, tenant domain.Tenant, sinceISO string) (time.Time, error) {
	if sinceISO != "" {
		t, err := time.Parse(time.RFC3339, sinceISO)
		if err != nil {
			return time.Time{}, errors.Wrap(err, "parsing since_iso")
		}
		return t, nil
	}
	wm, err := s.watermark.Get(ctx, tenant)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "loading watermark")
	}
	if wm != nil {
		return wm.LastUpdateSeen, nil
	}
	return time.Unix(0, 0).UTC(), nil
}

// DailyDiffReport compares the provider's service IDs against the local
// mirror's service IDs, reporting missing/extra/duplicate rows.
func (s *Service) DailyDiffReport(ctx context.Context, tenant domain.Tenant, providerIDs, localIDs []string) DiffReport {
	providerSet := make(map[string]int)
	for _, id := range providerIDs {
		providerSet[id]++
	}
	localSet := make(map[string]int)
	for _, id := range localIDs {
		localSet[id]++
	}

	report := DiffReport{TotalProvider: len(providerIDs), TotalLocal: len(localIDs)}
	for id, n := range localSet {
		if n > 1 {
			report.Duplicates++
			report.DuplicatesDetail = append(report.DuplicatesDetail, id)
		}
		if _, ok := providerSet[id]; !ok {
			report.ExtraInLocal++
			report.Phantoms = append(report.Phantoms, id)
		}
	}
	for id := range providerSet {
		if _, ok := localSet[id]; !ok {
			report.MissingInLocal++
		}
	}
	return report
}
