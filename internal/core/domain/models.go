package domain

import "time"

// JobStatus is the lifecycle state of an AnalyticsJob.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// KnownItem is a previously detected post. The registry of known items is
// append-only: once registered, an item is never treated as new again, even if
// it disappears from the platform and later reappears.
type KnownItem struct {
	Account    string    `json:"account"`
	ItemID     string    `json:"item_id"`
	DetectedAt time.Time `json:"detected_at"`
}

// ItemMetrics is a snapshot of engagement counters for one post. Counters are
// pointers because the platform may omit any of them.
type ItemMetrics struct {
	Views    *int64 `json:"view_count"`
	Likes    *int64 `json:"like_count"`
	Comments *int64 `json:"comment_count"`
	Shares   *int64 `json:"share_count"`
	Saves    *int64 `json:"save_count"`
}

// AnalyticsJob is a scheduled, retryable metrics collection for a detected
// post. Exactly one job is created per known item, due a fixed delay after
// detection. Completed and failed are terminal; a terminal job is never
// re-processed or re-created for the same item.
type AnalyticsJob struct {
	ID          string       `json:"job_id"`
	Account     string       `json:"account"`
	ItemID      string       `json:"item_id"`
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	DetectedAt  time.Time    `json:"detected_at"`
	DueAt       time.Time    `json:"due_at"`
	Attempts    int          `json:"attempts"`
	MaxAttempts int          `json:"max_attempts"`
	Status      JobStatus    `json:"status"`
	CollectedAt *time.Time   `json:"collected_at,omitempty"`
	Metrics     *ItemMetrics `json:"metrics,omitempty"`
}

// DurableState is the committed state document: the known-item registry and
// the analytics job table.
type DurableState struct {
	Version    int            `json:"version"`
	KnownItems []KnownItem    `json:"known_items"`
	Jobs       []AnalyticsJob `json:"jobs"`
}

// NewDurableState returns a fresh empty state for the first-run case.
func NewDurableState() *DurableState {
	return &DurableState{
		Version:    1,
		KnownItems: []KnownItem{},
		Jobs:       []AnalyticsJob{},
	}
}

// HasItem reports whether (account, itemID) is already registered.
func (s *DurableState) HasItem(account, itemID string) bool {
	for _, k := range s.KnownItems {
		if k.Account == account && k.ItemID == itemID {
			return true
		}
	}
	return false
}

// RegisterItem appends a known item, ignoring duplicates.
func (s *DurableState) RegisterItem(item KnownItem) {
	if s.HasItem(item.Account, item.ItemID) {
		return
	}
	s.KnownItems = append(s.KnownItems, item)
}

// PruneTerminalJobs trims completed/failed jobs down to the most recent max
// entries, preserving table order. Pending jobs are never pruned.
func (s *DurableState) PruneTerminalJobs(max int) {
	if max <= 0 {
		return
	}
	terminal := 0
	for _, j := range s.Jobs {
		if j.Status.Terminal() {
			terminal++
		}
	}
	if terminal <= max {
		return
	}
	drop := terminal - max
	kept := make([]AnalyticsJob, 0, len(s.Jobs)-drop)
	for _, j := range s.Jobs {
		if drop > 0 && j.Status.Terminal() {
			drop--
			continue
		}
		kept = append(kept, j)
	}
	s.Jobs = kept
}

// AccountStatus is the per-account ephemeral record: when the account was last
// checked, whether that check succeeded, and how many checks in a row failed.
type AccountStatus struct {
	LastChecked         *time.Time `json:"last_checked,omitempty"`
	LastCheckSuccess    bool       `json:"last_check_success"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// EphemeralState lives in an evictable cache between runs. Losing it only
// resets failure counters, which is safe.
type EphemeralState struct {
	Accounts map[string]*AccountStatus `json:"accounts"`
}

// NewEphemeralState returns a fresh empty ephemeral state.
func NewEphemeralState() *EphemeralState {
	return &EphemeralState{Accounts: map[string]*AccountStatus{}}
}

// Account returns the status record for the given account, creating it on
// first use.
func (e *EphemeralState) Account(name string) *AccountStatus {
	if e.Accounts == nil {
		e.Accounts = map[string]*AccountStatus{}
	}
	st, ok := e.Accounts[name]
	if !ok {
		st = &AccountStatus{}
		e.Accounts[name] = st
	}
	return st
}
