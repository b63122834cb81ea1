// Package awsorganizations removes the project's service control policies
// and, when asked to, closes its member accounts. It only ever runs against
// the management account.
package awsorganizations

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "organizations"

const (
	kindPolicy  = "scp"
	kindAccount = "account"
)

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) OrganizationsAPI { return organizations.NewFromConfig(cfg) },
		retry:     retry.Default,
		members:   map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return true }

// awsManaged reports whether arn belongs to a policy owned by AWS, such as
// FullAWSAccess. Those live under the "aws" account in the ARN.
func awsManaged(arn string) bool {
	return strings.Contains(arn, "::aws:policy/")
}

func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	if s.management == "" || target.AccountID != s.management {
		return nil, nil
	}
	cli := s.newClient(client.Config(target.Region))

	policies, err := s.policies(ctx, cli, target)
	if err != nil {
		if awserr.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing service control policies: %w", err)
	}
	if len(s.members) == 0 {
		return policies, nil
	}

	accounts, err := s.accounts(ctx, cli, target)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return append(policies, accounts...), nil
}

func (s *service) policies(ctx context.Context, cli OrganizationsAPI, target model.Target) ([]model.ResourceDescriptor, error) {
	var (
		descriptors []model.ResourceDescriptor
		token       *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*organizations.ListPoliciesOutput, error) {
			return cli.ListPolicies(ctx, &organizations.ListPoliciesInput{Filter: types.PolicyTypeServiceControlPolicy, NextToken: token})
		})
		if err != nil {
			return nil, err
		}

		for _, p := range out.Policies {
			if awsManaged(aws.ToString(p.Arn)) {
				continue
			}
			id := aws.ToString(p.Id)
			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        kindPolicy,
				Identifier:  id,
				Name:        aws.ToString(p.Name),
				ARN:         aws.ToString(p.Arn),
				Region:      target.Region,
				AccountID:   target.AccountID,
				Tags:        s.tags(ctx, cli, id),
			})
		}

		if out.NextToken == nil {
			return descriptors, nil
		}
		token = out.NextToken
	}
}

func (s *service) accounts(ctx context.Context, cli OrganizationsAPI, target model.Target) ([]model.ResourceDescriptor, error) {
	var (
		descriptors []model.ResourceDescriptor
		token       *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*organizations.ListAccountsOutput, error) {
			return cli.ListAccounts(ctx, &organizations.ListAccountsInput{NextToken: token})
		})
		if err != nil {
			return nil, err
		}

		for _, a := range out.Accounts {
			id := aws.ToString(a.Id)
			if !s.members[id] || id == s.management || a.Status != types.AccountStatusActive {
				continue
			}
			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        kindAccount,
				Identifier:  id,
				Name:        aws.ToString(a.Name),
				ARN:         aws.ToString(a.Arn),
				Region:      target.Region,
				AccountID:   target.AccountID,
				Tags:        s.tags(ctx, cli, id),
			})
		}

		if out.NextToken == nil {
			return descriptors, nil
		}
		token = out.NextToken
	}
}

func (s *service) tags(ctx context.Context, cli OrganizationsAPI, id string) map[string]string {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*organizations.ListTagsForResourceOutput, error) {
		return cli.ListTagsForResource(ctx, &organizations.ListTagsForResourceInput{ResourceId: aws.String(id)})
	})
	if err != nil || len(out.Tags) == 0 {
		return nil
	}
	tags := make(map[string]string, len(out.Tags))
	for _, t := range out.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))

	if r.Kind == kindAccount {
		if !exec.CloseMemberAccounts {
			return awserr.Skipped(r, "account closure not requested")
		}
		err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
			_, err := cli.CloseAccount(ctx, &organizations.CloseAccountInput{AccountId: aws.String(r.Identifier)})
			return err
		})
		o := awserr.Outcome(r, err)
		if err == nil {
			o.Detail = "account closure requested"
			clog.WarnContext(ctx, "member account closure requested", "account", r.Identifier, "name", r.Name)
		}
		return o
	}

	return awserr.Outcome(r, s.destroyPolicy(ctx, cli, r.Identifier))
}

func (s *service) destroyPolicy(ctx context.Context, cli OrganizationsAPI, id string) error {
	policyID := aws.String(id)

	var token *string
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*organizations.ListTargetsForPolicyOutput, error) {
			return cli.ListTargetsForPolicy(ctx, &organizations.ListTargetsForPolicyInput{PolicyId: policyID, NextToken: token})
		})
		if err != nil {
			return err
		}

		for _, t := range out.Targets {
			err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
				_, err := cli.DetachPolicy(ctx, &organizations.DetachPolicyInput{PolicyId: policyID, TargetId: t.TargetId})
				return err
			})
			if err != nil && !awserr.IsNotFound(err) {
				return fmt.Errorf("detaching from %s: %w", aws.ToString(t.TargetId), err)
			}
		}

		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}

	return retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeletePolicy(ctx, &organizations.DeletePolicyInput{PolicyId: policyID})
		return err
	})
}
