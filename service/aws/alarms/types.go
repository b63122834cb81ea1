package awsalarms

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

type CloudWatchAPI interface {
	DescribeAlarms(ctx context.Context, params *cloudwatch.DescribeAlarmsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error)
	ListTagsForResource(ctx context.Context, params *cloudwatch.ListTagsForResourceInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.ListTagsForResourceOutput, error)
	DeleteAlarms(ctx context.Context, params *cloudwatch.DeleteAlarmsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.DeleteAlarmsOutput, error)
}

type service struct {
	newClient func(aws.Config) CloudWatchAPI
	retry     retry.Policy
}

type Option func(*service)

func WithClientFactory(f func(aws.Config) CloudWatchAPI) Option {
	return func(s *service) { s.newClient = f }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *service) { s.retry = p }
}
