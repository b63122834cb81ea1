package model

import "time"

// RunStatus is the overall result of a run.
type RunStatus string

const (
	RunCompleted             RunStatus = "completed"
	RunCompletedWithFailures RunStatus = "completed_with_failures"
	RunCancelled             RunStatus = "cancelled"
	RunAborted               RunStatus = "aborted"
	RunDryRun                RunStatus = "dry_run"
)

// Counts is the fold of an outcome stream.
type Counts struct {
	Matched   int `json:"resources_matched"`
	Destroyed int `json:"resources_destroyed"`
	Failed    int `json:"resources_failed"`
	Skipped   int `json:"resources_skipped"`
	Deferred  int `json:"resources_deferred"`
}

// Summary is the machine-readable headline of a run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Status     RunStatus `json:"status"`
	Scope      Scope     `json:"scope"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`
	Counts
	LazyDeletes int `json:"lazy_deletes"`
}

// PhaseResult records one executed phase.
type PhaseResult struct {
	Number     int       `json:"number"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Counts     Counts    `json:"counts"`
	Errors     []string  `json:"errors,omitempty"`
}

// SkippedAccount is an account the engine could not enter.
type SkippedAccount struct {
	AccountID string `json:"account_id"`
	Phase     string `json:"phase"`
	ErrorKind string `json:"error_kind"`
	Error     string `json:"error"`
}

// ValidationVerdict is the validator's result. It never carries a bare
// boolean without the names behind it.
type ValidationVerdict struct {
	Clean          bool                 `json:"clean"`
	Stragglers     []ResourceDescriptor `json:"stragglers"`
	ScanErrors     []string             `json:"scan_errors,omitempty"`
	RegionsScanned []string             `json:"regions_scanned"`
	Accounts       []string             `json:"accounts_scanned"`
	Recommendation string               `json:"recommendation,omitempty"`
}

// Report is everything a run produced.
type Report struct {
	Summary         Summary              `json:"summary"`
	Targets         []Target             `json:"targets"`
	Phases          []PhaseResult        `json:"phases"`
	Outcomes        []DestructionOutcome `json:"outcomes"`
	WouldDestroy    []ResourceDescriptor `json:"would_destroy,omitempty"`
	LazyDeletes     []LazyDeleteEntry    `json:"lazy_deletes"`
	SkippedAccounts []SkippedAccount     `json:"skipped_accounts,omitempty"`
	Validation      *ValidationVerdict   `json:"validation,omitempty"`
	Savings         *SavingsEstimate     `json:"savings,omitempty"`
	Errors          []string             `json:"errors,omitempty"`
}

// Add folds one outcome into the counts.
func (c *Counts) Add(o DestructionOutcome) {
	c.Matched++
	switch o.Status {
	case StatusDestroyed:
		c.Destroyed++
	case StatusFailed:
		c.Failed++
	case StatusSkipped:
		c.Skipped++
	case StatusDeferred:
		c.Deferred++
	}
}
