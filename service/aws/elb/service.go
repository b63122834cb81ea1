// Package awselb removes application and network load balancers that no
// target group points at any more.
package awselb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "elb-orphans"

// DescribeTags accepts at most this many ARNs per call.
const tagBatchSize = 20

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) ELBAPI { return elb.NewFromConfig(cfg) },
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

	orphans, err := s.unusedLoadBalancers(ctx, cli)
	if err != nil {
		return nil, err
	}

	arns := make([]string, 0, len(orphans))
	for _, lb := range orphans {
		arns = append(arns, aws.ToString(lb.LoadBalancerArn))
	}
	tags := s.tags(ctx, cli, arns)

	descriptors := make([]model.ResourceDescriptor, 0, len(orphans))
	for _, lb := range orphans {
		arn := aws.ToString(lb.LoadBalancerArn)
		descriptors = append(descriptors, model.ResourceDescriptor{
			ServiceType: Name,
			Kind:        string(lb.Type),
			Identifier:  arn,
			Name:        aws.ToString(lb.LoadBalancerName),
			ARN:         arn,
			Region:      target.Region,
			AccountID:   client.AccountID(),
			Tags:        tags[arn],
		})
	}
	return descriptors, nil
}

func (s *service) unusedLoadBalancers(ctx context.Context, cli ELBAPI) ([]types.LoadBalancer, error) {
	var (
		balancers []types.LoadBalancer
		marker    *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*elb.DescribeLoadBalancersOutput, error) {
			return cli.DescribeLoadBalancers(ctx, &elb.DescribeLoadBalancersInput{Marker: marker})
		})
		if err != nil {
			return nil, fmt.Errorf("describing load balancers: %w", err)
		}
		balancers = append(balancers, out.LoadBalancers...)
		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}

	usedLbArns := make(map[string]bool)
	marker = nil
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*elb.DescribeTargetGroupsOutput, error) {
			return cli.DescribeTargetGroups(ctx, &elb.DescribeTargetGroupsInput{Marker: marker})
		})
		if err != nil {
			return nil, fmt.Errorf("describing target groups: %w", err)
		}
		for _, tg := range out.TargetGroups {
			for _, lbArn := range tg.LoadBalancerArns {
				usedLbArns[lbArn] = true
			}
		}
		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}

	var orphanedLbs []types.LoadBalancer
	for _, lb := range balancers {
		if lb.Type != types.LoadBalancerTypeEnumApplication && lb.Type != types.LoadBalancerTypeEnumNetwork {
			continue
		}
		if !usedLbArns[aws.ToString(lb.LoadBalancerArn)] {
			orphanedLbs = append(orphanedLbs, lb)
		}
	}
	return orphanedLbs, nil
}

func (s *service) tags(ctx context.Context, cli ELBAPI, arns []string) map[string]map[string]string {
	tags := make(map[string]map[string]string, len(arns))
	for start := 0; start < len(arns); start += tagBatchSize {
		batch := arns[start:min(start+tagBatchSize, len(arns))]
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*elb.DescribeTagsOutput, error) {
			return cli.DescribeTags(ctx, &elb.DescribeTagsInput{ResourceArns: batch})
		})
		if err != nil {
			continue
		}
		for _, d := range out.TagDescriptions {
			m := make(map[string]string, len(d.Tags))
			for _, t := range d.Tags {
				m[aws.ToString(t.Key)] = aws.ToString(t.Value)
			}
			tags[aws.ToString(d.ResourceArn)] = m
		}
	}
	return tags
}

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))
	arn := aws.String(r.Identifier)

	err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.ModifyLoadBalancerAttributes(ctx, &elb.ModifyLoadBalancerAttributesInput{
			LoadBalancerArn: arn,
			Attributes: []types.LoadBalancerAttribute{
				{Key: aws.String("deletion_protection.enabled"), Value: aws.String("false")},
			},
		})
		return err
	})
	if err != nil {
		return awserr.Outcome(r, fmt.Errorf("disabling deletion protection: %w", err))
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteLoadBalancer(ctx, &elb.DeleteLoadBalancerInput{LoadBalancerArn: arn})
		return err
	})
	return awserr.Outcome(r, err)
}
