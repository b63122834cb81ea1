// Package awsalarms deletes CloudWatch alarms. Composite alarms come first
// since a metric alarm referenced by a composite cannot be deleted.
package awsalarms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "cloudwatch-alarms"

const (
	kindComposite = "composite"
	kindMetric    = "metric"
)

var allTypes = []types.AlarmType{types.AlarmTypeCompositeAlarm, types.AlarmTypeMetricAlarm}

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) CloudWatchAPI { return cloudwatch.NewFromConfig(cfg) },
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
		composite, metric []model.ResourceDescriptor
		token             *string
	)
	describe := func(kind, name, arn string) model.ResourceDescriptor {
		return model.ResourceDescriptor{
			ServiceType: Name,
			Kind:        kind,
			Identifier:  name,
			Name:        name,
			ARN:         arn,
			Region:      target.Region,
			AccountID:   client.AccountID(),
			Tags:        s.tags(ctx, cli, arn),
		}
	}

	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudwatch.DescribeAlarmsOutput, error) {
			return cli.DescribeAlarms(ctx, &cloudwatch.DescribeAlarmsInput{AlarmTypes: allTypes, NextToken: token})
		})
		if err != nil {
			return nil, fmt.Errorf("describing alarms: %w", err)
		}

		for _, a := range out.CompositeAlarms {
			composite = append(composite, describe(kindComposite, aws.ToString(a.AlarmName), aws.ToString(a.AlarmArn)))
		}
		for _, a := range out.MetricAlarms {
			metric = append(metric, describe(kindMetric, aws.ToString(a.AlarmName), aws.ToString(a.AlarmArn)))
		}

		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}

	return append(composite, metric...), nil
}

func (s *service) tags(ctx context.Context, cli CloudWatchAPI, arn string) map[string]string {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudwatch.ListTagsForResourceOutput, error) {
		return cli.ListTagsForResource(ctx, &cloudwatch.ListTagsForResourceInput{ResourceARN: aws.String(arn)})
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

// Destroy checks that the alarm still exists, since DeleteAlarms succeeds
// silently for unknown names.
func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))

	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudwatch.DescribeAlarmsOutput, error) {
		return cli.DescribeAlarms(ctx, &cloudwatch.DescribeAlarmsInput{AlarmNames: []string{r.Identifier}, AlarmTypes: allTypes})
	})
	if err != nil {
		return awserr.Outcome(r, err)
	}
	if len(out.CompositeAlarms)+len(out.MetricAlarms) == 0 {
		return awserr.Skipped(r, "already deleted")
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteAlarms(ctx, &cloudwatch.DeleteAlarmsInput{AlarmNames: []string{r.Identifier}})
		return err
	})
	return awserr.Outcome(r, err)
}
