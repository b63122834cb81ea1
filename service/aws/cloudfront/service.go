// Package awscloudfront disables and deletes CDN distributions.
package awscloudfront

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "cloudfront"

const statusDeployed = "Deployed"

func NewService(opts ...Option) *service {
	s := &service{
		newClient:    func(cfg aws.Config) CloudFrontAPI { return cloudfront.NewFromConfig(cfg) },
		retry:        retry.Default,
		pollInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return true }

func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	cli := s.newClient(client.Config(target.Region))

	var descriptors []model.ResourceDescriptor
	paginator := cloudfront.NewListDistributionsPaginator(cli, &cloudfront.ListDistributionsInput{})
	for paginator.HasMorePages() {
		page, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudfront.ListDistributionsOutput, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("listing distributions: %w", err)
		}
		if page.DistributionList == nil {
			continue
		}

		for _, d := range page.DistributionList.Items {
			name := aws.ToString(d.Comment)
			if name == "" && d.Aliases != nil && len(d.Aliases.Items) > 0 {
				name = d.Aliases.Items[0]
			}
			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        "distribution",
				Identifier:  aws.ToString(d.Id),
				Name:        name,
				ARN:         aws.ToString(d.ARN),
				Region:      target.Region,
				AccountID:   client.AccountID(),
				Tags:        s.tags(ctx, cli, aws.ToString(d.ARN)),
			})
		}
	}

	return descriptors, nil
}

func (s *service) tags(ctx context.Context, cli CloudFrontAPI, arn string) map[string]string {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudfront.ListTagsForResourceOutput, error) {
		return cli.ListTagsForResource(ctx, &cloudfront.ListTagsForResourceInput{Resource: aws.String(arn)})
	})
	if err != nil || out.Tags == nil {
		return nil
	}
	tags := make(map[string]string, len(out.Tags.Items))
	for _, t := range out.Tags.Items {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

// Destroy disables the distribution, waits for the change to reach Deployed
// and deletes it with the current ETag. A distribution still deploying when
// the operation timeout expires is deferred.
func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))
	id := aws.String(r.Identifier)

	cfg, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudfront.GetDistributionConfigOutput, error) {
		return cli.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{Id: id})
	})
	if err != nil {
		return awserr.Outcome(r, err)
	}

	if aws.ToBool(cfg.DistributionConfig.Enabled) {
		cfg.DistributionConfig.Enabled = aws.Bool(false)
		err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
			_, err := cli.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
				Id:                 id,
				IfMatch:            cfg.ETag,
				DistributionConfig: cfg.DistributionConfig,
			})
			return err
		})
		if err != nil {
			return awserr.Outcome(r, fmt.Errorf("disabling distribution: %w", err))
		}
		clog.InfoContext(ctx, "distribution disabled, waiting for deployment", "distribution", r.Identifier)
	}

	etag, err := s.waitDeployed(ctx, cli, r.Identifier, exec.OperationTimeout)
	if err != nil {
		return awserr.Outcome(r, err)
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteDistribution(ctx, &cloudfront.DeleteDistributionInput{Id: id, IfMatch: etag})
		return err
	})
	return awserr.Outcome(r, err)
}

func (s *service) waitDeployed(ctx context.Context, cli CloudFrontAPI, id string, timeout time.Duration) (*string, error) {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	deadline := time.Now().Add(timeout)

	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudfront.GetDistributionOutput, error) {
			return cli.GetDistribution(ctx, &cloudfront.GetDistributionInput{Id: aws.String(id)})
		})
		if err != nil {
			return nil, err
		}

		status := "unknown"
		if out != nil && out.Distribution != nil {
			d := out.Distribution
			status = aws.ToString(d.Status)
			if status == statusDeployed && (d.DistributionConfig == nil || !aws.ToBool(d.DistributionConfig.Enabled)) {
				return out.ETag, nil
			}
		}

		if time.Now().Add(s.pollInterval).After(deadline) {
			return nil, &awserr.DependencyNotReadyError{
				Resource: "distribution " + id,
				Reason:   fmt.Sprintf("still %s after %s", status, timeout),
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}
