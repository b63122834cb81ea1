package awsorganizations

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

type OrganizationsAPI interface {
	ListPolicies(ctx context.Context, params *organizations.ListPoliciesInput, optFns ...func(*organizations.Options)) (*organizations.ListPoliciesOutput, error)
	ListTagsForResource(ctx context.Context, params *organizations.ListTagsForResourceInput, optFns ...func(*organizations.Options)) (*organizations.ListTagsForResourceOutput, error)
	ListTargetsForPolicy(ctx context.Context, params *organizations.ListTargetsForPolicyInput, optFns ...func(*organizations.Options)) (*organizations.ListTargetsForPolicyOutput, error)
	DetachPolicy(ctx context.Context, params *organizations.DetachPolicyInput, optFns ...func(*organizations.Options)) (*organizations.DetachPolicyOutput, error)
	DeletePolicy(ctx context.Context, params *organizations.DeletePolicyInput, optFns ...func(*organizations.Options)) (*organizations.DeletePolicyOutput, error)
	ListAccounts(ctx context.Context, params *organizations.ListAccountsInput, optFns ...func(*organizations.Options)) (*organizations.ListAccountsOutput, error)
	CloseAccount(ctx context.Context, params *organizations.CloseAccountInput, optFns ...func(*organizations.Options)) (*organizations.CloseAccountOutput, error)
}

type service struct {
	newClient  func(aws.Config) OrganizationsAPI
	retry      retry.Policy
	management string
	members    map[string]bool
}

type Option func(*service)

func WithClientFactory(f func(aws.Config) OrganizationsAPI) Option {
	return func(s *service) { s.newClient = f }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *service) { s.retry = p }
}

// WithManagementAccount restricts the destroyer to the organization's
// management account. Without it nothing is enumerated.
func WithManagementAccount(id string) Option {
	return func(s *service) { s.management = id }
}

// WithClosableAccounts names the member accounts that may be closed. Only
// these are ever enumerated as accounts.
func WithClosableAccounts(ids ...string) Option {
	return func(s *service) {
		for _, id := range ids {
			s.members[id] = true
		}
	}
}
