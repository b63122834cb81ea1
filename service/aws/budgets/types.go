package awsbudgets

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

type BudgetsAPI interface {
	DescribeBudgets(ctx context.Context, params *budgets.DescribeBudgetsInput, optFns ...func(*budgets.Options)) (*budgets.DescribeBudgetsOutput, error)
	ListTagsForResource(ctx context.Context, params *budgets.ListTagsForResourceInput, optFns ...func(*budgets.Options)) (*budgets.ListTagsForResourceOutput, error)
	DeleteBudget(ctx context.Context, params *budgets.DeleteBudgetInput, optFns ...func(*budgets.Options)) (*budgets.DeleteBudgetOutput, error)
}

type service struct {
	newClient func(aws.Config) BudgetsAPI
	retry     retry.Policy
}

type Option func(*service)

func WithClientFactory(f func(aws.Config) BudgetsAPI) Option {
	return func(s *service) { s.newClient = f }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *service) { s.retry = p }
}
