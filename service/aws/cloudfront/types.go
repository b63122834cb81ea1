package awscloudfront

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

type CloudFrontAPI interface {
	cloudfront.ListDistributionsAPIClient
	ListTagsForResource(ctx context.Context, params *cloudfront.ListTagsForResourceInput, optFns ...func(*cloudfront.Options)) (*cloudfront.ListTagsForResourceOutput, error)
	GetDistributionConfig(ctx context.Context, params *cloudfront.GetDistributionConfigInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionConfigOutput, error)
	UpdateDistribution(ctx context.Context, params *cloudfront.UpdateDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.UpdateDistributionOutput, error)
	GetDistribution(ctx context.Context, params *cloudfront.GetDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionOutput, error)
	DeleteDistribution(ctx context.Context, params *cloudfront.DeleteDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.DeleteDistributionOutput, error)
}

type service struct {
	newClient    func(aws.Config) CloudFrontAPI
	retry        retry.Policy
	pollInterval time.Duration
}

type Option func(*service)

func WithClientFactory(f func(aws.Config) CloudFrontAPI) Option {
	return func(s *service) { s.newClient = f }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *service) { s.retry = p }
}

// WithPollInterval sets how often a disabled distribution is checked for the
// Deployed state.
func WithPollInterval(d time.Duration) Option {
	return func(s *service) { s.pollInterval = d }
}
