package model

import (
	"strings"
	"time"
)

// AccountInfo represents cloud account identity
type AccountInfo struct {
	Provider    string
	AccountID   string
	AccountName string
}

// ResourceDescriptor is one enumerated cloud resource. It only lives for the
// duration of a single destroyer invocation.
type ResourceDescriptor struct {
	ServiceType string            `json:"service_type"`
	Kind        string            `json:"kind,omitempty"`
	Identifier  string            `json:"identifier"`
	Name        string            `json:"name"`
	ARN         string            `json:"arn,omitempty"`
	Region      string            `json:"region"`
	AccountID   string            `json:"account_id"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Key uniquely identifies a descriptor across services, accounts and regions.
func (r ResourceDescriptor) Key() string {
	return strings.Join([]string{r.ServiceType, r.Kind, r.AccountID, r.Region, r.Identifier}, "|")
}

// Label is the human readable form used in summaries.
func (r ResourceDescriptor) Label() string {
	name := r.Name
	if name == "" {
		name = r.Identifier
	}
	if r.Kind != "" {
		return r.ServiceType + "/" + r.Kind + ":" + name
	}
	return r.ServiceType + ":" + name
}

// MatchResult is the ownership decision for a descriptor.
type MatchResult struct {
	Matched bool   `json:"matched"`
	Reason  string `json:"reason"`
}

// Status is the fate of a matched resource.
type Status string

const (
	StatusDestroyed Status = "destroyed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusDeferred  Status = "deferred"
)

// DestructionOutcome records what happened to exactly one matched resource.
type DestructionOutcome struct {
	Resource   ResourceDescriptor `json:"resource"`
	Status     Status             `json:"status"`
	Phase      string             `json:"phase,omitempty"`
	Detail     string             `json:"detail,omitempty"`
	ErrorKind  string             `json:"error_kind,omitempty"`
	Error      string             `json:"error,omitempty"`
	LazyDelete *LazyDeleteEntry   `json:"lazy_delete,omitempty"`
	At         time.Time          `json:"at"`
}

// LazyDeleteStatus tracks a lazy-delete entry across runs.
type LazyDeleteStatus string

const (
	LazyDeletePending   LazyDeleteStatus = "pending"
	LazyDeleteCompleted LazyDeleteStatus = "completed"
)

// LazyDeleteEntry is a resource whose removal is left to a later run or to
// the provider's own lifecycle.
type LazyDeleteEntry struct {
	ID                        string           `json:"id"`
	ServiceType               string           `json:"service_type"`
	ResourceID                string           `json:"resource_id"`
	AccountID                 string           `json:"account_id"`
	Region                    string           `json:"region"`
	Reason                    string           `json:"reason"`
	ExpectedConvergenceWindow Duration         `json:"expected_convergence_window"`
	Status                    LazyDeleteStatus `json:"status"`
	RunID                     string           `json:"run_id"`
	Attempts                  int              `json:"attempts"`
	CreatedAt                 time.Time        `json:"created_at"`
	UpdatedAt                 time.Time        `json:"updated_at"`
}

// Duration marshals as a Go duration string ("48h0m0s") in JSON.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
