package catalogsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonatasporto/trinks-router/catalog"
	"github.com/jonatasporto/trinks-router/provider"
	"github.com/jonatasporto/trinks-router/storemem"
)

type fakeProvider struct {
	mu      sync.Mutex
	pages   [][]provider.ServiceItem
	calls   int
	blockCh chan struct{}
}

func (f *fakeProvider) GetServicesPage(ctx context.Context, tenant, updatedSince string, page, limit int) (provider.ServicePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blockCh != nil {
		<-f.blockCh
	}
	f.calls++
	if page >= len(f.pages) {
		return provider.ServicePage{HasMore: false}, nil
	}
	hasMore := page+1 < len(f.pages)
	next := page + 1
	return provider.ServicePage{Items: f.pages[page], HasMore: hasMore, NextPage: next}, nil
}

func (f *fakeProvider) ValidateAvailability(ctx context.Context, tenant, serviceID string, professionalID *int64, startISO string) (provider.AvailabilityResult, error) {
	return provider.AvailabilityResult{}, nil
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

func TestTriggerFullSyncUpsertsAllPagesAndAdvancesWatermark(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewCatalogStore()
	cat := catalog.New(backing)
	wm := storemem.NewSyncWatermarkStore()
	lock := storemem.NewSyncLockStore()

	fp := &fakeProvider{pages: [][]provider.ServiceItem{
		{{ServiceID: "s1", Name: "Corte", Active: true, VisibleToClient: true, UpdatedAt: "2026-01-01T00:00:00Z"}},
		{{ServiceID: "s2", Name: "Escova", Active: true, VisibleToClient: true, UpdatedAt: "2026-02-01T00:00:00Z"}},
	}}
	svc := New(cat, fp, wm, lock, 100, time.Hour)

	res, err := svc.TriggerFullSync(ctx, "t1", "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK {
		t.Fatal("expected ok result")
	}

	count, _ := backing.CountAll(ctx, "t1")
	if count != 2 {
		t.Fatalf("expected 2 items upserted, got %d", count)
	}

	gotWM, _ := wm.Get(ctx, "t1")
	if gotWM == nil || !gotWM.LastUpdateSeen.Equal(mustParse("2026-02-01T00:00:00Z")) {
		t.Fatalf("unexpected watermark: %+v", gotWM)
	}
}

func TestTriggerFullSyncFailsFastWhenAlreadyRunning(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewCatalogStore()
	cat := catalog.New(backing)
	wm := storemem.NewSyncWatermarkStore()
	lock := storemem.NewSyncLockStore()

	blockCh := make(chan struct{})
	fp := &fakeProvider{pages: [][]provider.ServiceItem{{{ServiceID: "s1", Active: true, VisibleToClient: true, UpdatedAt: "2026-01-01T00:00:00Z"}}}, blockCh: blockCh}
	svc := New(cat, fp, wm, lock, 100, time.Hour)

	done := make(chan error, 1)
	go func() {
		_, err := svc.TriggerFullSync(ctx, "t1", "")
		done <- err
	}()

	// Give the first call time to enter the guard before firing the second.
	time.Sleep(20 * time.Millisecond)
	_, err := svc.TriggerFullSync(ctx, "t1", "")
	if err != ErrSyncInProgress {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}

	close(blockCh)
	if err := <-done; err != nil {
		t.Fatalf("first sync should succeed, got %v", err)
	}
}

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
