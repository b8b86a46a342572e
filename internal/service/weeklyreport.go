package service

import (
	"context"
	"log"

	"tokwatch/internal/core/domain"
	"tokwatch/internal/core/ports"
)

// WeeklyReportRunner sends the operational status summary: what the monitor
// does, which accounts it watches, and the current registry/job counts.
type WeeklyReportRunner struct {
	Accounts []string
	Notifier ports.Notifier
	Logger   *log.Logger
}

// Run builds and sends the report. Stateless with respect to the job and
// registry model: it only reads counts.
func (r *WeeklyReportRunner) Run(ctx context.Context, state *domain.DurableState) error {
	pending, completed := 0, 0
	for _, j := range state.Jobs {
		switch j.Status {
		case domain.JobPending:
			pending++
		case domain.JobCompleted, domain.JobFailed:
			completed++
		}
	}
	if err := r.Notifier.NotifyWeeklyReport(ctx, r.Accounts, len(state.KnownItems), pending, completed); err != nil {
		return err
	}
	r.Logger.Printf("weekly report sent (%d accounts, %d known posts)", len(r.Accounts), len(state.KnownItems))
	return nil
}
