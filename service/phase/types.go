package phase

import (
	"context"

	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/lazydelete"
	"github.com/elC0mpa/aws-teardown/service/matcher"
)

// Validator re-scans the targets once destruction is over.
type Validator interface {
	Validate(ctx context.Context, targets []model.Target, exec model.ExecutionContext) model.ValidationVerdict
}

type scheduler struct {
	sessions          core.SessionManager
	registry          core.Registry
	patterns          matcher.Patterns
	store             lazydelete.Store
	validator         Validator
	plan              []Phase
	managementAccount string
}

type Option func(*scheduler)

// WithPlan replaces the default phase plan.
func WithPlan(plan []Phase) Option {
	return func(s *scheduler) { s.plan = plan }
}

func WithManagementAccount(id string) Option {
	return func(s *scheduler) { s.managementAccount = id }
}

func WithValidator(v Validator) Option {
	return func(s *scheduler) { s.validator = v }
}

// Result is everything one scheduler run produced. Outcomes is append-only
// and is folded into counts by the reporter.
type Result struct {
	Phases          []model.PhaseResult
	Outcomes        []model.DestructionOutcome
	WouldDestroy    []model.ResourceDescriptor
	LazyDeletes     []model.LazyDeleteEntry
	SkippedAccounts []model.SkippedAccount
	Validation      *model.ValidationVerdict
	Errors          []string
	Cancelled       bool
}

type SchedulerService interface {
	Run(ctx context.Context, targets []model.Target, exec model.ExecutionContext) (*Result, error)
}
