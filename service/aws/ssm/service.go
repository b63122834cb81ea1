// Package awsssm deletes Parameter Store parameters.
package awsssm

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "ssm"

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) SSMAPI { return ssm.NewFromConfig(cfg) },
		retry:     retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return false }

func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	cli := s.newClient(client.Config(target.Region))

	var (
		descriptors []model.ResourceDescriptor
		token       *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*ssm.DescribeParametersOutput, error) {
			return cli.DescribeParameters(ctx, &ssm.DescribeParametersInput{NextToken: token, MaxResults: aws.Int32(50)})
		})
		if err != nil {
			return nil, fmt.Errorf("describing parameters: %w", err)
		}

		for _, p := range out.Parameters {
			name := aws.ToString(p.Name)
			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        "parameter",
				Identifier:  name,
				Name:        name,
				ARN:         aws.ToString(p.ARN),
				Region:      target.Region,
				AccountID:   client.AccountID(),
				Tags:        s.tags(ctx, cli, name),
			})
		}

		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}

	return descriptors, nil
}

func (s *service) tags(ctx context.Context, cli SSMAPI, name string) map[string]string {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*ssm.ListTagsForResourceOutput, error) {
		return cli.ListTagsForResource(ctx, &ssm.ListTagsForResourceInput{ResourceType: types.ResourceTypeForTaggingParameter, ResourceId: aws.String(name)})
	})
	if err != nil || len(out.TagList) == 0 {
		return nil
	}
	tags := make(map[string]string, len(out.TagList))
	for _, t := range out.TagList {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))

	err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteParameter(ctx, &ssm.DeleteParameterInput{Name: aws.String(r.Identifier)})
		return err
	})
	return awserr.Outcome(r, err)
}
