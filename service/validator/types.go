package validator

import (
	"context"

	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/lazydelete"
	"github.com/elC0mpa/aws-teardown/service/matcher"
)

type service struct {
	sessions core.SessionManager
	registry core.Registry
	patterns matcher.Patterns
	regions  []string
	lazy     lazydelete.Store
}

type Option func(*service)

// WithRegions adds regions scanned in every account on top of the targets.
func WithRegions(regions ...string) Option {
	return func(s *service) { s.regions = append(s.regions, regions...) }
}

// WithLazyDeletes lets the verdict tell deferred resources apart from real
// stragglers.
func WithLazyDeletes(store lazydelete.Store) Option {
	return func(s *service) { s.lazy = store }
}

type ValidatorService interface {
	Validate(ctx context.Context, targets []model.Target, exec model.ExecutionContext) model.ValidationVerdict
}
