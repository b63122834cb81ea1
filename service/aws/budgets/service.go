// Package awsbudgets deletes cost budgets.
package awsbudgets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "budgets"

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) BudgetsAPI { return budgets.NewFromConfig(cfg) },
		retry:     retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return true }

func budgetARN(account, name string) string {
	return "arn:aws:budgets::" + account + ":budget/" + name
}

func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	cli := s.newClient(client.Config(target.Region))
	account := aws.String(client.AccountID())

	var (
		descriptors []model.ResourceDescriptor
		token       *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*budgets.DescribeBudgetsOutput, error) {
			return cli.DescribeBudgets(ctx, &budgets.DescribeBudgetsInput{AccountId: account, NextToken: token})
		})
		if err != nil {
			if awserr.IsNotFound(err) {
				return descriptors, nil
			}
			return nil, fmt.Errorf("describing budgets: %w", err)
		}

		for _, b := range out.Budgets {
			name := aws.ToString(b.BudgetName)
			arn := budgetARN(client.AccountID(), name)
			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        "budget",
				Identifier:  name,
				Name:        name,
				ARN:         arn,
				Region:      target.Region,
				AccountID:   client.AccountID(),
				Tags:        s.tags(ctx, cli, arn),
			})
		}

		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}

	return descriptors, nil
}

func (s *service) tags(ctx context.Context, cli BudgetsAPI, arn string) map[string]string {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*budgets.ListTagsForResourceOutput, error) {
		return cli.ListTagsForResource(ctx, &budgets.ListTagsForResourceInput{ResourceARN: aws.String(arn)})
	})
	if err != nil || len(out.ResourceTags) == 0 {
		return nil
	}
	tags := make(map[string]string, len(out.ResourceTags))
	for _, t := range out.ResourceTags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))

	err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteBudget(ctx, &budgets.DeleteBudgetInput{AccountId: aws.String(r.AccountID), BudgetName: aws.String(r.Identifier)})
		return err
	})
	return awserr.Outcome(r, err)
}
