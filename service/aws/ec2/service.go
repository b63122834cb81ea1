// Package awsec2 sweeps the orphans a teardown leaves behind: Elastic IPs
// with no association and EBS volumes in the available state.
package awsec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "ec2-orphans"

const (
	kindElasticIP = "elastic-ip"
	kindVolume    = "volume"
)

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) EC2API { return ec2.NewFromConfig(cfg) },
		retry:     retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return false }

func tagMap(list []types.Tag) map[string]string {
	if len(list) == 0 {
		return nil
	}
	tags := make(map[string]string, len(list))
	for _, t := range list {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	cli := s.newClient(client.Config(target.Region))

	addresses, err := s.unusedElasticIPs(ctx, cli)
	if err != nil {
		return nil, fmt.Errorf("describing addresses: %w", err)
	}
	volumes, err := s.availableVolumes(ctx, cli)
	if err != nil {
		return nil, fmt.Errorf("describing volumes: %w", err)
	}

	var descriptors []model.ResourceDescriptor
	for _, a := range addresses {
		tags := tagMap(a.Tags)
		descriptors = append(descriptors, model.ResourceDescriptor{
			ServiceType: Name,
			Kind:        kindElasticIP,
			Identifier:  aws.ToString(a.AllocationId),
			Name:        tags["Name"],
			Region:      target.Region,
			AccountID:   client.AccountID(),
			Tags:        tags,
		})
	}
	for _, v := range volumes {
		tags := tagMap(v.Tags)
		descriptors = append(descriptors, model.ResourceDescriptor{
			ServiceType: Name,
			Kind:        kindVolume,
			Identifier:  aws.ToString(v.VolumeId),
			Name:        tags["Name"],
			Region:      target.Region,
			AccountID:   client.AccountID(),
			Tags:        tags,
		})
	}
	return descriptors, nil
}

func (s *service) unusedElasticIPs(ctx context.Context, cli EC2API) ([]types.Address, error) {
	output, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*ec2.DescribeAddressesOutput, error) {
		return cli.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	})
	if err != nil {
		return nil, err
	}

	var unused []types.Address
	for _, address := range output.Addresses {
		if address.AssociationId == nil {
			unused = append(unused, address)
		}
	}
	return unused, nil
}

func (s *service) availableVolumes(ctx context.Context, cli EC2API) ([]types.Volume, error) {
	var (
		volumes []types.Volume
		token   *string
	)
	for {
		output, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*ec2.DescribeVolumesOutput, error) {
			return cli.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
				Filters: []types.Filter{
					{
						Name:   aws.String("status"),
						Values: []string{"available"},
					},
				},
				NextToken: token,
			})
		})
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, output.Volumes...)
		if output.NextToken == nil {
			return volumes, nil
		}
		token = output.NextToken
	}
}

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))

	if r.Kind == kindVolume {
		err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
			_, err := cli.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: aws.String(r.Identifier)})
			return err
		})
		return awserr.Outcome(r, err)
	}

	// An address can be re-associated between enumeration and now.
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*ec2.DescribeAddressesOutput, error) {
		return cli.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{AllocationIds: []string{r.Identifier}})
	})
	if err != nil {
		return awserr.Outcome(r, err)
	}
	if len(out.Addresses) == 0 {
		return awserr.Skipped(r, "already deleted")
	}
	if out.Addresses[0].AssociationId != nil {
		return awserr.Outcome(r, &awserr.DependencyNotReadyError{Resource: "address " + r.Identifier, Reason: "associated again"})
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{AllocationId: aws.String(r.Identifier)})
		return err
	})
	return awserr.Outcome(r, err)
}
