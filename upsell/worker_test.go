package upsell

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/jonatasporto/trinks-router/catalog"
	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/storemem"
)

func TestWorkerTickDispatchesDueJob(t *testing.T) {
	outbound := &fakeOutbound{}
	svc, backing := newTestService(t, Config{Enabled: true, MaxAttempts: 3, RetryDelay: time.Minute}, outbound)
	ctx := context.Background()

	job := domain.ScheduledUpsellJob{
		ID: "job-1", Tenant: "tenant-1", ConversationID: "conv-1", Phone: "5511999999999",
		AppointmentID: "appt-1", PrimaryServiceID: "svc-corte",
		ScheduledFor: time.Now().Add(-time.Minute),
		Variant:      domain.Variant{Copy: domain.VariantCopyA, Position: domain.VariantDelay10},
		MaxAttempts:  3, Status: domain.JobPending,
	}
	if err := backing.Upsell.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	w := NewWorker(svc, time.Hour, 2)
	if err := w.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(outbound.sent) != 1 {
		t.Fatalf("expected one dispatched offer, got %d", len(outbound.sent))
	}
	jobs, err := backing.Upsell.DuePendingJobs(ctx, time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("DuePendingJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected the completed job to no longer be pending, got %d", len(jobs))
	}
}

func TestWorkerProcessRetriesThenFails(t *testing.T) {
	outbound := &fakeOutbound{}
	svc, backing := newTestService(t, Config{Enabled: true, MaxAttempts: 2, RetryDelay: time.Minute}, outbound)
	ctx := context.Background()

	job := domain.ScheduledUpsellJob{
		ID: "job-2", Tenant: "tenant-1", ConversationID: "conv-2", Phone: "5511999999999",
		AppointmentID: "appt-2", PrimaryServiceID: "svc-unknown", // no addon -> dispatch never succeeds
		ScheduledFor: time.Now(),
		Variant:      domain.Variant{Copy: domain.VariantCopyA, Position: domain.VariantDelay10},
		MaxAttempts:  2, Status: domain.JobPending,
	}
	if err := backing.Upsell.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	w := NewWorker(svc, time.Hour, 2)

	updated := w.process(ctx, job)
	if updated.Status != domain.JobPending {
		t.Fatalf("expected job rescheduled as pending after first failed attempt, got %s", updated.Status)
	}
	if updated.Attempts != 1 {
		t.Fatalf("expected Attempts=1, got %d", updated.Attempts)
	}

	final := w.process(ctx, updated)
	if final.Status != domain.JobFailed {
		t.Fatalf("expected job failed after exhausting attempts, got %s", final.Status)
	}
	if final.Attempts != 2 {
		t.Fatalf("expected Attempts=2, got %d", final.Attempts)
	}
	if len(outbound.sent) != 0 {
		t.Fatalf("expected no sends for a service with no addon, got %v", outbound.sent)
	}
}

func TestWorkerRunStopsOnContextCancel(t *testing.T) {
	outbound := &fakeOutbound{}
	backing := storemem.New()
	catalogSvc := catalog.New(backing.Catalog)
	svc := New(Config{Enabled: true, MaxAttempts: 1}, catalogSvc, backing.Upsell, &fakeBookingProvider{}, outbound, rand.New(rand.NewSource(1)))
	w := NewWorker(svc, 5*time.Millisecond, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return promptly after context cancellation")
	}
}
