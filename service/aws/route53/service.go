// Package awsroute53 empties and deletes hosted zones.
package awsroute53

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "route53"

// maxChangesPerBatch stays well under the 1000 change limit of a single
// ChangeResourceRecordSets call.
const maxChangesPerBatch = 100

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) Route53API { return route53.NewFromConfig(cfg) },
		retry:     retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return true }

func zoneID(id string) string {
	return strings.TrimPrefix(id, "/hostedzone/")
}

func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	cli := s.newClient(client.Config(target.Region))

	var (
		descriptors []model.ResourceDescriptor
		marker      *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*route53.ListHostedZonesOutput, error) {
			return cli.ListHostedZones(ctx, &route53.ListHostedZonesInput{Marker: marker})
		})
		if err != nil {
			return nil, fmt.Errorf("listing hosted zones: %w", err)
		}

		for _, z := range out.HostedZones {
			id := zoneID(aws.ToString(z.Id))
			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        "hosted-zone",
				Identifier:  id,
				Name:        strings.TrimSuffix(aws.ToString(z.Name), "."),
				ARN:         "arn:aws:route53:::hostedzone/" + id,
				Region:      target.Region,
				AccountID:   client.AccountID(),
				Tags:        s.tags(ctx, cli, id),
			})
		}

		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}

	return descriptors, nil
}

func (s *service) tags(ctx context.Context, cli Route53API, id string) map[string]string {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*route53.ListTagsForResourceOutput, error) {
		return cli.ListTagsForResource(ctx, &route53.ListTagsForResourceInput{ResourceType: types.TagResourceTypeHostedzone, ResourceId: aws.String(id)})
	})
	if err != nil || out.ResourceTagSet == nil || len(out.ResourceTagSet.Tags) == 0 {
		return nil
	}
	tags := make(map[string]string, len(out.ResourceTagSet.Tags))
	for _, t := range out.ResourceTagSet.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

// Destroy removes every record except the apex NS and SOA, which Route 53
// deletes together with the zone.
func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))
	id := aws.String(r.Identifier)

	changes, err := s.deletableRecords(ctx, cli, r)
	if err != nil {
		return awserr.Outcome(r, err)
	}

	for start := 0; start < len(changes); start += maxChangesPerBatch {
		batch := changes[start:min(start+maxChangesPerBatch, len(changes))]
		err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
			_, err := cli.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
				HostedZoneId: id,
				ChangeBatch:  &types.ChangeBatch{Changes: batch, Comment: aws.String("teardown")},
			})
			return err
		})
		if err != nil {
			return awserr.Outcome(r, fmt.Errorf("deleting records: %w", err))
		}
	}
	if len(changes) > 0 {
		clog.InfoContext(ctx, "hosted zone records deleted", "zone", r.Name, "records", len(changes))
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteHostedZone(ctx, &route53.DeleteHostedZoneInput{Id: id})
		return err
	})
	return awserr.Outcome(r, err)
}

func (s *service) deletableRecords(ctx context.Context, cli Route53API, r model.ResourceDescriptor) ([]types.Change, error) {
	apex := strings.TrimSuffix(r.Name, ".") + "."

	var (
		changes  []types.Change
		nextName *string
		nextType types.RRType
		nextID   *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*route53.ListResourceRecordSetsOutput, error) {
			return cli.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
				HostedZoneId:          aws.String(r.Identifier),
				StartRecordName:       nextName,
				StartRecordType:       nextType,
				StartRecordIdentifier: nextID,
			})
		})
		if err != nil {
			return nil, err
		}

		for _, rrs := range out.ResourceRecordSets {
			if aws.ToString(rrs.Name) == apex && (rrs.Type == types.RRTypeNs || rrs.Type == types.RRTypeSoa) {
				continue
			}
			changes = append(changes, types.Change{Action: types.ChangeActionDelete, ResourceRecordSet: &rrs})
		}

		if out.NextRecordName == nil {
			return changes, nil
		}
		nextName, nextType, nextID = out.NextRecordName, out.NextRecordType, out.NextRecordIdentifier
	}
}
