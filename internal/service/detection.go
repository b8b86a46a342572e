// Package service holds the runners: detection, analytics collection, and
// the weekly report. Runners mutate the in-memory state handed to them and
// never touch the persisted files; the entry points load and save state
// around a single runner invocation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"tokwatch/internal/core/domain"
	"tokwatch/internal/core/ports"
)

// DetectionRunner checks each configured account for posts not yet in the
// known-item registry, registers them, schedules their analytics jobs, and
// notifies the channel.
type DetectionRunner struct {
	Accounts         []string
	Extractor        ports.Extractor
	Notifier         ports.Notifier
	Logger           *log.Logger
	AnalyticsDelay   time.Duration
	MaxAttempts      int
	FailureThreshold int

	// Now is the clock; tests override it. Nil means time.Now.
	Now func() time.Time
}

// DetectionSummary reports what one detection run did.
type DetectionSummary struct {
	AccountsChecked int
	NewItems        int
	FailedAccounts  int
}

// Run processes every account in order. Per-account failures are recorded in
// the ephemeral state and never stop the loop.
func (r *DetectionRunner) Run(ctx context.Context, state *domain.DurableState, eph *domain.EphemeralState) DetectionSummary {
	now := r.now()
	var summary DetectionSummary

	for _, account := range r.Accounts {
		summary.AccountsChecked++
		status := eph.Account(account)

		items, err := r.Extractor.ListRecentItems(ctx, account)
		checked := now
		status.LastChecked = &checked
		if err != nil {
			summary.FailedAccounts++
			status.LastCheckSuccess = false
			status.ConsecutiveFailures++
			r.Logger.Printf("detection failed for %s (%d consecutive): %v", account, status.ConsecutiveFailures, err)

			// Escalate on the exact threshold crossing only; the counter must
			// drop back to zero via a success before it can fire again.
			if status.ConsecutiveFailures == r.FailureThreshold {
				msg := fmt.Sprintf("Account %s has failed %d consecutive checks. It may not exist or may have gone private.", account, r.FailureThreshold)
				if errors.Is(err, ports.ErrAccountNotFound) {
					msg = fmt.Sprintf("Account %s not found for %d consecutive checks. It may have been deleted or made private.", account, r.FailureThreshold)
				}
				if alertErr := r.Notifier.NotifyAlert(ctx, msg); alertErr != nil {
					r.Logger.Printf("escalation notification failed for %s: %v", account, alertErr)
				}
			}
			continue
		}

		status.LastCheckSuccess = true
		status.ConsecutiveFailures = 0

		for _, item := range items {
			if state.HasItem(account, item.ID) {
				continue
			}
			r.Logger.Printf("new post detected: %s - %s", account, item.ID)
			state.RegisterItem(domain.KnownItem{
				Account:    account,
				ItemID:     item.ID,
				DetectedAt: now,
			})
			state.Jobs = append(state.Jobs, domain.AnalyticsJob{
				ID:          uuid.NewString(),
				Account:     account,
				ItemID:      item.ID,
				Title:       item.Title,
				URL:         item.URL,
				DetectedAt:  now,
				DueAt:       now.Add(r.AnalyticsDelay),
				MaxAttempts: r.MaxAttempts,
				Status:      domain.JobPending,
			})
			summary.NewItems++

			notice := ports.NewPostNotice{
				Account:    account,
				ItemID:     item.ID,
				URL:        item.URL,
				Title:      item.Title,
				DetectedAt: now.Format("2006-01-02 15:04 UTC"),
			}
			if err := r.Notifier.NotifyNewPost(ctx, notice); err != nil {
				r.Logger.Printf("detection notification failed for %s/%s: %v", account, item.ID, err)
			}
		}
	}
	return summary
}

func (r *DetectionRunner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
