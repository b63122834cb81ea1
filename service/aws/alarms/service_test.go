package awsalarms

import (
	"context"
	"slices"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/elC0mpa/aws-teardown/model"
	"github.com/elC0mpa/aws-teardown/service/aws/awstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAlarms struct {
	awstest.Recorder
	composite []string
	metric    []string
}

func (m *mockAlarms) DescribeAlarms(_ context.Context, in *cloudwatch.DescribeAlarmsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error) {
	out := &cloudwatch.DescribeAlarmsOutput{}
	keep := func(name string) bool { return len(in.AlarmNames) == 0 || slices.Contains(in.AlarmNames, name) }
	for _, n := range m.composite {
		if keep(n) {
			out.CompositeAlarms = append(out.CompositeAlarms, types.CompositeAlarm{AlarmName: aws.String(n), AlarmArn: aws.String("arn:" + n)})
		}
	}
	for _, n := range m.metric {
		if keep(n) {
			out.MetricAlarms = append(out.MetricAlarms, types.MetricAlarm{AlarmName: aws.String(n), AlarmArn: aws.String("arn:" + n)})
		}
	}
	return out, nil
}

func (m *mockAlarms) ListTagsForResource(context.Context, *cloudwatch.ListTagsForResourceInput, ...func(*cloudwatch.Options)) (*cloudwatch.ListTagsForResourceOutput, error) {
	return &cloudwatch.ListTagsForResourceOutput{}, nil
}

func (m *mockAlarms) DeleteAlarms(_ context.Context, in *cloudwatch.DeleteAlarmsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.DeleteAlarmsOutput, error) {
	m.Record("DeleteAlarms", in.AlarmNames...)
	for _, n := range in.AlarmNames {
		m.composite = slices.DeleteFunc(m.composite, func(s string) bool { return s == n })
		m.metric = slices.DeleteFunc(m.metric, func(s string) bool { return s == n })
	}
	return &cloudwatch.DeleteAlarmsOutput{}, nil
}

func newTestService(m *mockAlarms) *service {
	return NewService(WithClientFactory(func(aws.Config) CloudWatchAPI { return m }), WithRetryPolicy(awstest.Retry))
}

func TestEnumerateCompositeFirst(t *testing.T) {
	m := &mockAlarms{composite: []string{"acme-health"}, metric: []string{"acme-cpu", "acme-5xx"}}

	got, err := newTestService(m).Enumerate(context.Background(), awstest.Handle{}, model.Target{Region: "us-east-1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, kindComposite, got[0].Kind)
	assert.Nil(t, got[0].Tags)
}

func TestDestroySkipsUnknownAlarm(t *testing.T) {
	m := &mockAlarms{metric: []string{"acme-cpu"}}
	s := newTestService(m)
	r := model.ResourceDescriptor{ServiceType: Name, Kind: kindMetric, Identifier: "acme-cpu", Region: "us-east-1"}

	assert.Equal(t, model.StatusDestroyed, s.Destroy(context.Background(), awstest.Handle{}, r, model.ExecutionContext{}).Status)
	assert.Equal(t, model.StatusSkipped, s.Destroy(context.Background(), awstest.Handle{}, r, model.ExecutionContext{}).Status)
	assert.Equal(t, []string{"DeleteAlarms:acme-cpu"}, m.Ops())
}
