// Package awswafv2 deletes web ACLs in both the regional and the CloudFront
// scope. CloudFront-scoped ACLs only exist in us-east-1.
package awswafv2

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	"github.com/aws/aws-sdk-go-v2/service/wafv2/types"
	"github.com/aws/smithy-go"
	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "wafv2"

const (
	kindRegional   = "regional"
	kindCloudFront = "cloudfront"

	cloudFrontRegion = "us-east-1"
	maxLockAttempts  = 3
)

var associatedTypes = []types.ResourceType{
	types.ResourceTypeApplicationLoadBalancer,
	types.ResourceTypeApiGateway,
	types.ResourceTypeAppsync,
	types.ResourceTypeCognitioUserPool,
}

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) WAFv2API { return wafv2.NewFromConfig(cfg) },
		retry:     retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return false }

func scopeOf(kind string) types.Scope {
	if kind == kindCloudFront {
		return types.ScopeCloudfront
	}
	return types.ScopeRegional
}

func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	cli := s.newClient(client.Config(target.Region))

	kinds := []string{kindRegional}
	if target.Region == cloudFrontRegion {
		kinds = append(kinds, kindCloudFront)
	}

	var descriptors []model.ResourceDescriptor
	for _, kind := range kinds {
		var marker *string
		for {
			out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*wafv2.ListWebACLsOutput, error) {
				return cli.ListWebACLs(ctx, &wafv2.ListWebACLsInput{Scope: scopeOf(kind), NextMarker: marker, Limit: aws.Int32(100)})
			})
			if err != nil {
				return nil, fmt.Errorf("listing %s web ACLs: %w", kind, err)
			}

			for _, acl := range out.WebACLs {
				descriptors = append(descriptors, model.ResourceDescriptor{
					ServiceType: Name,
					Kind:        kind,
					Identifier:  aws.ToString(acl.Id),
					Name:        aws.ToString(acl.Name),
					ARN:         aws.ToString(acl.ARN),
					Region:      target.Region,
					AccountID:   client.AccountID(),
					Tags:        s.tags(ctx, cli, aws.ToString(acl.ARN)),
				})
			}

			if out.NextMarker == nil || len(out.WebACLs) == 0 {
				break
			}
			marker = out.NextMarker
		}
	}

	return descriptors, nil
}

func (s *service) tags(ctx context.Context, cli WAFv2API, arn string) map[string]string {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*wafv2.ListTagsForResourceOutput, error) {
		return cli.ListTagsForResource(ctx, &wafv2.ListTagsForResourceInput{ResourceARN: aws.String(arn)})
	})
	if err != nil || out.TagInfoForResource == nil {
		return nil
	}
	tags := make(map[string]string, len(out.TagInfoForResource.TagList))
	for _, t := range out.TagInfoForResource.TagList {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

// Destroy detaches a regional ACL from every resource it protects and then
// deletes it with a fresh lock token. A stale token is refetched a bounded
// number of times.
func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))

	if r.Kind != kindCloudFront {
		if err := s.disassociate(ctx, cli, r); err != nil {
			return awserr.Outcome(r, err)
		}
	}

	var err error
	for range maxLockAttempts {
		err = s.delete(ctx, cli, r)
		var apiErr smithy.APIError
		if err == nil || !errors.As(err, &apiErr) || apiErr.ErrorCode() != "WAFOptimisticLockException" {
			break
		}
		clog.DebugContext(ctx, "web ACL lock token went stale, refetching", "acl", r.Name)
	}
	return awserr.Outcome(r, err)
}

func (s *service) disassociate(ctx context.Context, cli WAFv2API, r model.ResourceDescriptor) error {
	for _, rt := range associatedTypes {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*wafv2.ListResourcesForWebACLOutput, error) {
			return cli.ListResourcesForWebACL(ctx, &wafv2.ListResourcesForWebACLInput{WebACLArn: aws.String(r.ARN), ResourceType: rt})
		})
		if err != nil {
			return fmt.Errorf("listing %s associations: %w", rt, err)
		}

		for _, arn := range out.ResourceArns {
			err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
				_, err := cli.DisassociateWebACL(ctx, &wafv2.DisassociateWebACLInput{ResourceArn: aws.String(arn)})
				return err
			})
			if err != nil && !awserr.IsNotFound(err) {
				return fmt.Errorf("disassociating %s: %w", arn, err)
			}
			clog.InfoContext(ctx, "web ACL disassociated", "acl", r.Name, "resource", arn)
		}
	}
	return nil
}

func (s *service) delete(ctx context.Context, cli WAFv2API, r model.ResourceDescriptor) error {
	acl, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*wafv2.GetWebACLOutput, error) {
		return cli.GetWebACL(ctx, &wafv2.GetWebACLInput{Name: aws.String(r.Name), Id: aws.String(r.Identifier), Scope: scopeOf(r.Kind)})
	})
	if err != nil {
		return err
	}

	return retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteWebACL(ctx, &wafv2.DeleteWebACLInput{
			Name:      aws.String(r.Name),
			Id:        aws.String(r.Identifier),
			Scope:     scopeOf(r.Kind),
			LockToken: acl.LockToken,
		})
		return err
	})
}
