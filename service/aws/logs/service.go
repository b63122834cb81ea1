// Package awslogs deletes CloudWatch log groups.
package awslogs

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "cloudwatch-logs"

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) LogsAPI { return cloudwatchlogs.NewFromConfig(cfg) },
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
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
			return cli.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{NextToken: token})
		})
		if err != nil {
			return nil, fmt.Errorf("describing log groups: %w", err)
		}

		for _, g := range out.LogGroups {
			// DescribeLogGroups reports the ARN with a trailing ":*" that the
			// tagging API rejects.
			arn := strings.TrimSuffix(aws.ToString(g.Arn), ":*")
			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        "log-group",
				Identifier:  aws.ToString(g.LogGroupName),
				Name:        aws.ToString(g.LogGroupName),
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

func (s *service) tags(ctx context.Context, cli LogsAPI, arn string) map[string]string {
	if arn == "" {
		return nil
	}
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudwatchlogs.ListTagsForResourceOutput, error) {
		return cli.ListTagsForResource(ctx, &cloudwatchlogs.ListTagsForResourceInput{ResourceArn: aws.String(arn)})
	})
	if err != nil {
		return nil
	}
	return out.Tags
}

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))

	err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{LogGroupName: aws.String(r.Identifier)})
		return err
	})
	return awserr.Outcome(r, err)
}
