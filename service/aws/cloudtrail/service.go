// Package awscloudtrail stops and deletes trails. Trails must stop writing
// before their log buckets can be emptied.
package awscloudtrail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "cloudtrail"

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) CloudTrailAPI { return cloudtrail.NewFromConfig(cfg) },
		retry:     retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return false }

// Enumerate only returns trails whose home region is the target region, so a
// multi-region trail is handled exactly once.
func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	cli := s.newClient(client.Config(target.Region))

	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudtrail.DescribeTrailsOutput, error) {
		return cli.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{IncludeShadowTrails: aws.Bool(false)})
	})
	if err != nil {
		return nil, fmt.Errorf("describing trails: %w", err)
	}

	var descriptors []model.ResourceDescriptor
	for _, trail := range out.TrailList {
		if aws.ToString(trail.HomeRegion) != target.Region {
			continue
		}
		descriptors = append(descriptors, model.ResourceDescriptor{
			ServiceType: Name,
			Kind:        "trail",
			Identifier:  aws.ToString(trail.TrailARN),
			Name:        aws.ToString(trail.Name),
			ARN:         aws.ToString(trail.TrailARN),
			Region:      target.Region,
			AccountID:   client.AccountID(),
		})
	}

	if len(descriptors) > 0 {
		s.attachTags(ctx, cli, descriptors)
	}
	return descriptors, nil
}

func (s *service) attachTags(ctx context.Context, cli CloudTrailAPI, descriptors []model.ResourceDescriptor) {
	arns := make([]string, len(descriptors))
	for i, d := range descriptors {
		arns[i] = d.ARN
	}

	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudtrail.ListTagsOutput, error) {
		return cli.ListTags(ctx, &cloudtrail.ListTagsInput{ResourceIdList: arns})
	})
	if err != nil {
		clog.WarnContext(ctx, "could not read trail tags", "error", err)
		return
	}

	byARN := map[string]map[string]string{}
	for _, rt := range out.ResourceTagList {
		tags := map[string]string{}
		for _, t := range rt.TagsList {
			tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
		}
		byARN[aws.ToString(rt.ResourceId)] = tags
	}
	for i := range descriptors {
		descriptors[i].Tags = byARN[descriptors[i].ARN]
	}
}

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))
	name := aws.String(r.Identifier)

	status, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*cloudtrail.GetTrailStatusOutput, error) {
		return cli.GetTrailStatus(ctx, &cloudtrail.GetTrailStatusInput{Name: name})
	})
	if err != nil {
		return awserr.Outcome(r, err)
	}

	if aws.ToBool(status.IsLogging) {
		err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
			_, err := cli.StopLogging(ctx, &cloudtrail.StopLoggingInput{Name: name})
			return err
		})
		if err != nil {
			return awserr.Outcome(r, fmt.Errorf("stopping trail logging: %w", err))
		}
		clog.InfoContext(ctx, "trail logging stopped", "trail", r.Name)
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteTrail(ctx, &cloudtrail.DeleteTrailInput{Name: name})
		return err
	})
	return awserr.Outcome(r, err)
}
