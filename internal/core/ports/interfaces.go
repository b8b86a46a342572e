package ports

import (
	"context"
	"errors"

	"tokwatch/internal/core/domain"
)

var (
	// ErrAccountNotFound marks extraction failures where the account does not
	// exist or is private.
	ErrAccountNotFound = errors.New("account not found")

	// ErrRateLimited marks extraction failures caused by platform rate limits.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotYetAvailable marks metrics fetches for posts whose data the
	// platform has not exposed yet. Transient; the job stays pending.
	ErrNotYetAvailable = errors.New("metrics not yet available")
)

// ItemSummary is the minimal per-post info from a profile listing.
type ItemSummary struct {
	ID    string
	Title string
	URL   string
}

// Extractor defines the contract for fetching data from the video platform.
type Extractor interface {
	// ListRecentItems returns the posts currently visible on the account's
	// profile, newest first. Errors wrap ErrAccountNotFound or ErrRateLimited
	// where the failure can be classified.
	ListRecentItems(ctx context.Context, account string) ([]ItemSummary, error)

	// FetchMetrics returns the engagement counters for a single post URL.
	// Errors may wrap ErrNotYetAvailable.
	FetchMetrics(ctx context.Context, itemURL string) (*domain.ItemMetrics, error)
}

// NewPostNotice carries the fields of a detection notification.
type NewPostNotice struct {
	Account    string
	ItemID     string
	URL        string
	Title      string
	DetectedAt string
}

// AnalyticsNotice carries the fields of a metrics-report notification.
type AnalyticsNotice struct {
	Account    string
	URL        string
	Title      string
	DetectedAt string
	Metrics    domain.ItemMetrics
}

// Notifier defines the contract for the external notification channel.
// Delivery is best-effort: a failed notification must never roll back the
// state change it was reporting.
type Notifier interface {
	NotifyNewPost(ctx context.Context, n NewPostNotice) error
	NotifyAnalytics(ctx context.Context, n AnalyticsNotice) error
	NotifyAlert(ctx context.Context, message string) error
	NotifyWeeklyReport(ctx context.Context, accounts []string, knownItems, pendingJobs, completedJobs int) error
}
