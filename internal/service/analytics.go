package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"tokwatch/internal/core/domain"
	"tokwatch/internal/core/ports"
)

// AnalyticsRunner collects metrics for every pending job whose due time has
// elapsed and advances job state. Jobs not yet due are left untouched;
// terminal jobs are never revisited.
type AnalyticsRunner struct {
	Extractor ports.Extractor
	Notifier  ports.Notifier
	Logger    *log.Logger

	// Now is the clock; tests override it. Nil means time.Now.
	Now func() time.Time
}

// AnalyticsSummary reports what one analytics run did.
type AnalyticsSummary struct {
	Due       int
	Completed int
	Failed    int
	Retrying  int
}

// Run walks the job table in order. A single job's failure never stops the
// loop; retries happen on later invocations (the external cadence is the
// backoff).
func (r *AnalyticsRunner) Run(ctx context.Context, state *domain.DurableState) AnalyticsSummary {
	now := r.now()
	var summary AnalyticsSummary

	for i := range state.Jobs {
		job := &state.Jobs[i]
		if job.Status != domain.JobPending || job.DueAt.After(now) {
			continue
		}
		summary.Due++
		r.Logger.Printf("collecting analytics for %s (%s)", job.ItemID, job.Account)

		metrics, err := r.Extractor.FetchMetrics(ctx, job.URL)
		if err == nil {
			collected := now
			job.Status = domain.JobCompleted
			job.Metrics = metrics
			job.CollectedAt = &collected
			summary.Completed++

			notice := ports.AnalyticsNotice{
				Account:    job.Account,
				URL:        job.URL,
				Title:      job.Title,
				DetectedAt: job.DetectedAt.Format("2006-01-02 15:04 UTC"),
				Metrics:    *metrics,
			}
			if notifyErr := r.Notifier.NotifyAnalytics(ctx, notice); notifyErr != nil {
				r.Logger.Printf("analytics notification failed for %s: %v", job.ItemID, notifyErr)
			}
			continue
		}

		job.Attempts++
		r.Logger.Printf("analytics fetch failed for %s (attempt %d/%d): %v", job.ItemID, job.Attempts, job.MaxAttempts, err)
		if job.Attempts < job.MaxAttempts {
			summary.Retrying++
			continue
		}

		collected := now
		job.Status = domain.JobFailed
		job.CollectedAt = &collected
		summary.Failed++

		msg := fmt.Sprintf("Analytics collection for post %s (%s) failed after %d attempts. The video may have been deleted.", job.ItemID, job.Account, job.MaxAttempts)
		if alertErr := r.Notifier.NotifyAlert(ctx, msg); alertErr != nil {
			r.Logger.Printf("escalation notification failed for %s: %v", job.ItemID, alertErr)
		}
	}
	return summary
}

func (r *AnalyticsRunner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
