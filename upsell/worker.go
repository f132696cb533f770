package upsell

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonatasporto/trinks-router/domain"
)

// Worker periodically drains due ScheduledUpsellJobs, dispatching each
// through the same IMMEDIATE flow the controller uses for non-deferred
// offers, with bounded concurrency via errgroup.
type Worker struct {
	svc         *Service
	interval    time.Duration
	concurrency int
}

// NewWorker builds a Worker that polls every interval, processing up to
// concurrency jobs at a time.
func NewWorker(svc *Service, interval time.Duration, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Worker{svc: svc, interval: interval, concurrency: concurrency}
}

// Run blocks, polling until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.tick(ctx); err != nil {
				slog.Error("upsell worker: tick failed", "error", err)
			}
		}
	}
}

func (w *Worker) tick(ctx context.Context) error {
	jobs, err := w.svc.store.DuePendingJobs(ctx, time.Now(), 100)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			_ = w.process(gctx, job)
			return nil
		})
	}
	return g.Wait()
}

// process runs one dispatch attempt for job and returns its persisted
// outcome (Completed, rescheduled Pending, or terminally Failed).
func (w *Worker) process(ctx context.Context, job domain.ScheduledUpsellJob) domain.ScheduledUpsellJob {
	job.Status = domain.JobProcessing
	job.Attempts++
	if err := w.svc.store.UpdateJob(ctx, job); err != nil {
		slog.Error("upsell worker: failed to mark job processing", "job", job.ID, "error", err)
		return job
	}

	addon, err := w.svc.catalog.RecommendedAddon(ctx, job.Tenant, job.PrimaryServiceID)
	if err == nil && addon != nil {
		err = w.svc.dispatch(ctx, job.Tenant, job.ConversationID, job.Phone, job.AppointmentID, job.PrimaryServiceID, *addon, job.Variant)
	} else if err == nil {
		err = errNoAddon
	}

	if err == nil {
		job.Status = domain.JobCompleted
		job.LastError = ""
		_ = w.svc.store.UpdateJob(ctx, job)
		return job
	}

	job.LastError = err.Error()
	if job.Attempts < job.MaxAttempts {
		job.Status = domain.JobPending
		job.ScheduledFor = time.Now().Add(w.svc.cfg.RetryDelay)
	} else {
		job.Status = domain.JobFailed
	}
	if updErr := w.svc.store.UpdateJob(ctx, job); updErr != nil {
		slog.Error("upsell worker: failed to persist job outcome", "job", job.ID, "error", updErr)
	}
	return job
}
