package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokwatch/internal/core/domain"
)

func TestWeeklyReportSendsSummary(t *testing.T) {
	notifier := &fakeNotifier{}
	state := domain.NewDurableState()
	state.KnownItems = append(state.KnownItems, domain.KnownItem{Account: "@a", ItemID: "v1", DetectedAt: fixedNow()})
	done := pendingJob(fixedNow())
	done.Status = domain.JobCompleted
	state.Jobs = append(state.Jobs, pendingJob(fixedNow().Add(time.Hour)), done)

	runner := &WeeklyReportRunner{
		Accounts: []string{"@a", "@b"},
		Notifier: notifier,
		Logger:   testLogger(),
	}
	if err := runner.Run(context.Background(), state); err != nil {
		t.Fatalf("weekly report failed: %v", err)
	}
	if notifier.reports != 1 {
		t.Fatalf("expected 1 report, got %d", notifier.reports)
	}
}

func TestWeeklyReportPropagatesDeliveryError(t *testing.T) {
	notifier := &fakeNotifier{sendErr: errors.New("webhook unreachable")}
	runner := &WeeklyReportRunner{
		Accounts: []string{"@a"},
		Notifier: notifier,
		Logger:   testLogger(),
	}
	if err := runner.Run(context.Background(), domain.NewDurableState()); err == nil {
		t.Fatalf("expected delivery error to propagate")
	}
}
