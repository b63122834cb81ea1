package service

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/elC0mpa/aws-teardown/model"
)

// IdentityService provides cloud account identity information
type IdentityService interface {
	GetAccountInfo(ctx context.Context) (*model.AccountInfo, error)
}

// CostService provides billing data for the savings estimate
type CostService interface {
	GetLastMonthCostsByService(ctx context.Context) (*model.CostInfo, error)
}

// ClientHandle is the only way a destroyer reaches the provider. It is bound
// to one assumed session and stops working once that session is restored.
type ClientHandle interface {
	AccountID() string
	Config(region string) aws.Config
}

// SessionManager hands out client handles one target at a time.
type SessionManager interface {
	IdentityService
	WithSession(ctx context.Context, target model.Target, fn func(ClientHandle) error) error
}

// Destroyer enumerates and removes the resources of one AWS service.
//
// Enumerate must tolerate a service that is empty or not enabled in the
// target and return no descriptors. Destroy must be idempotent: a resource
// that is already gone yields a skipped outcome.
type Destroyer interface {
	Name() string
	// Global destroyers are enumerated once per account from the home region.
	Global() bool
	Enumerate(ctx context.Context, client ClientHandle, target model.Target) ([]model.ResourceDescriptor, error)
	Destroy(ctx context.Context, client ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome
}

// Sweeper is implemented by destroyers that can finish deferred work recorded
// in the lazy-delete tracking file.
type Sweeper interface {
	Sweep(ctx context.Context, client ClientHandle, entry model.LazyDeleteEntry, exec model.ExecutionContext) model.DestructionOutcome
	// Exists reports whether a deferred resource is still present.
	Exists(ctx context.Context, client ClientHandle, entry model.LazyDeleteEntry) (bool, error)
}

// Registry resolves destroyers by their service key.
type Registry interface {
	Get(name string) (Destroyer, bool)
	Names() []string
}
