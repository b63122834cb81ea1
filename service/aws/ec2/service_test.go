package awsec2

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/elC0mpa/aws-teardown/model"
	"github.com/elC0mpa/aws-teardown/service/aws/awstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEC2 struct {
	awstest.Recorder
	addresses []types.Address
	volumes   map[string]string // id -> state
}

func nameTag(v string) []types.Tag {
	return []types.Tag{{Key: aws.String("Name"), Value: aws.String(v)}}
}

func (m *mockEC2) DescribeAddresses(_ context.Context, in *ec2.DescribeAddressesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error) {
	out := &ec2.DescribeAddressesOutput{}
	for _, a := range m.addresses {
		if len(in.AllocationIds) > 0 && in.AllocationIds[0] != aws.ToString(a.AllocationId) {
			continue
		}
		out.Addresses = append(out.Addresses, a)
	}
	if len(in.AllocationIds) > 0 && len(out.Addresses) == 0 {
		return nil, awstest.APIError("InvalidAllocationID.NotFound")
	}
	return out, nil
}

func (m *mockEC2) DescribeVolumes(_ context.Context, in *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	out := &ec2.DescribeVolumesOutput{}
	for id, state := range m.volumes {
		if state == in.Filters[0].Values[0] {
			out.Volumes = append(out.Volumes, types.Volume{VolumeId: aws.String(id), Tags: nameTag("acme-data")})
		}
	}
	return out, nil
}

func (m *mockEC2) ReleaseAddress(_ context.Context, in *ec2.ReleaseAddressInput, _ ...func(*ec2.Options)) (*ec2.ReleaseAddressOutput, error) {
	m.Record("ReleaseAddress", aws.ToString(in.AllocationId))
	return &ec2.ReleaseAddressOutput{}, nil
}

func (m *mockEC2) DeleteVolume(_ context.Context, in *ec2.DeleteVolumeInput, _ ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error) {
	m.Record("DeleteVolume", aws.ToString(in.VolumeId))
	if m.volumes[aws.ToString(in.VolumeId)] == "in-use" {
		return nil, awstest.APIError("VolumeInUse")
	}
	delete(m.volumes, aws.ToString(in.VolumeId))
	return &ec2.DeleteVolumeOutput{}, nil
}

func newTestService(m *mockEC2) *service {
	return NewService(WithClientFactory(func(aws.Config) EC2API { return m }), WithRetryPolicy(awstest.Retry))
}

func TestEnumerateOnlyOrphans(t *testing.T) {
	m := &mockEC2{
		addresses: []types.Address{
			{AllocationId: aws.String("eipalloc-free"), Tags: nameTag("acme-nat")},
			{AllocationId: aws.String("eipalloc-used"), AssociationId: aws.String("eipassoc-1")},
		},
		volumes: map[string]string{"vol-free": "available", "vol-used": "in-use"},
	}

	got, err := newTestService(m).Enumerate(context.Background(), awstest.Handle{}, model.Target{Region: "us-east-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "eipalloc-free", got[0].Identifier)
	assert.Equal(t, "acme-nat", got[0].Name)
	assert.Equal(t, "vol-free", got[1].Identifier)
	assert.Equal(t, kindVolume, got[1].Kind)
}

func TestDestroyAddressReassociatedIsDeferred(t *testing.T) {
	m := &mockEC2{addresses: []types.Address{{AllocationId: aws.String("eipalloc-1"), AssociationId: aws.String("eipassoc-9")}}}
	r := model.ResourceDescriptor{ServiceType: Name, Kind: kindElasticIP, Identifier: "eipalloc-1", Region: "us-east-1"}

	o := newTestService(m).Destroy(context.Background(), awstest.Handle{}, r, model.ExecutionContext{})

	assert.Equal(t, model.StatusDeferred, o.Status)
	assert.Empty(t, m.Ops())
}

func TestDestroyOrphans(t *testing.T) {
	m := &mockEC2{addresses: []types.Address{{AllocationId: aws.String("eipalloc-1")}}, volumes: map[string]string{"vol-1": "available"}}
	s := newTestService(m)

	eip := s.Destroy(context.Background(), awstest.Handle{}, model.ResourceDescriptor{Kind: kindElasticIP, Identifier: "eipalloc-1"}, model.ExecutionContext{})
	vol := s.Destroy(context.Background(), awstest.Handle{}, model.ResourceDescriptor{Kind: kindVolume, Identifier: "vol-1"}, model.ExecutionContext{})
	gone := s.Destroy(context.Background(), awstest.Handle{}, model.ResourceDescriptor{Kind: kindElasticIP, Identifier: "eipalloc-404"}, model.ExecutionContext{})

	assert.Equal(t, model.StatusDestroyed, eip.Status)
	assert.Equal(t, model.StatusDestroyed, vol.Status)
	assert.Equal(t, model.StatusSkipped, gone.Status)
	assert.Equal(t, []string{"ReleaseAddress:eipalloc-1", "DeleteVolume:vol-1"}, m.Ops())
}
