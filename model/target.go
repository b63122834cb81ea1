package model

import (
	"slices"
	"time"
)

// Target identifies one destruction scope.
type Target struct {
	AccountID   string `json:"account_id"`
	Region      string `json:"region"`
	Environment string `json:"environment"`
}

func (t Target) String() string {
	return t.AccountID + "/" + t.Region
}

// Scope selects which preserved-resource set applies to a run.
type Scope string

const (
	ScopeFull        Scope = "full"
	ScopeEnvironment Scope = "environment"
)

// ExecutionContext carries the run-wide settings. It is built once per
// invocation and passed by value, so nothing downstream can change it after
// the scheduler starts.
type ExecutionContext struct {
	RunID               string
	Scope               Scope
	Environment         string // environment scope only; empty keeps every environment
	DryRun              bool
	Force               bool
	AccountFilter       []string
	CrossAccountEnabled bool
	CloseMemberAccounts bool
	TerraformCleanup    bool
	Regions             []string
	OperationTimeout    time.Duration
	S3EmptyTimeout      time.Duration
	MaxWorkers          int
	BatchSize           int
}

// AccountAllowed reports whether the account filter admits accountID. An empty
// filter admits every account.
func (e ExecutionContext) AccountAllowed(accountID string) bool {
	if len(e.AccountFilter) == 0 {
		return true
	}
	return slices.Contains(e.AccountFilter, accountID)
}
