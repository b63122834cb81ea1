package awscostexplorer

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/elC0mpa/aws-teardown/service/aws/awstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCE struct {
	inputs []*costexplorer.GetCostAndUsageInput
	pages  []*costexplorer.GetCostAndUsageOutput
	err    error
}

func (m *mockCE) GetCostAndUsage(_ context.Context, in *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	copied := *in
	m.inputs = append(m.inputs, &copied)
	if m.err != nil {
		return nil, m.err
	}
	page := m.pages[0]
	m.pages = m.pages[1:]
	return page, nil
}

func group(name, amount string) types.Group {
	return types.Group{
		Keys:    []string{name},
		Metrics: map[string]types.MetricValue{costsAggregation: {Amount: aws.String(amount), Unit: aws.String("USD")}},
	}
}

func newTestService(m *mockCE, now time.Time) *service {
	s := NewServiceWithClient(m)
	s.retry = awstest.Retry
	s.now = func() time.Time { return now }
	return s
}

func TestGetLastMonthCostsByService(t *testing.T) {
	m := &mockCE{pages: []*costexplorer.GetCostAndUsageOutput{
		{
			ResultsByTime: []types.ResultByTime{{
				TimePeriod: &types.DateInterval{Start: aws.String("2026-02-01"), End: aws.String("2026-03-01")},
				Groups:     []types.Group{group("Amazon Simple Storage Service", "12.50"), group("AWS Lambda", "0")},
			}},
			NextPageToken: aws.String("p2"),
		},
		{
			ResultsByTime: []types.ResultByTime{{Groups: []types.Group{group("Amazon CloudFront", "40")}}},
		},
	}}

	got, err := newTestService(m, time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC)).GetLastMonthCostsByService(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2026-02-01", aws.ToString(m.inputs[0].TimePeriod.Start))
	assert.Equal(t, "2026-03-01", aws.ToString(m.inputs[0].TimePeriod.End))
	assert.Equal(t, "p2", aws.ToString(m.inputs[1].NextPageToken))
	assert.Len(t, got.CostGroup, 2)
	assert.InDelta(t, 12.5, got.CostGroup["Amazon Simple Storage Service"].Amount, 0.001)
	assert.NotContains(t, got.CostGroup, "AWS Lambda")
	assert.Equal(t, "2026-02-01", aws.ToString(got.Start))
}

func TestLastMonthWindowAtMonthEnd(t *testing.T) {
	tests := []struct {
		now        time.Time
		start, end string
	}{
		{now: time.Date(2026, 3, 29, 0, 0, 0, 0, time.UTC), start: "2026-02-01", end: "2026-03-01"},
		{now: time.Date(2026, 3, 30, 23, 0, 0, 0, time.UTC), start: "2026-02-01", end: "2026-03-01"},
		{now: time.Date(2026, 5, 31, 12, 0, 0, 0, time.UTC), start: "2026-04-01", end: "2026-05-01"},
		{now: time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC), start: "2025-12-01", end: "2026-01-01"},
		{now: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), start: "2026-09-01", end: "2026-10-01"},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format(time.DateOnly), func(t *testing.T) {
			m := &mockCE{pages: []*costexplorer.GetCostAndUsageOutput{{
				ResultsByTime: []types.ResultByTime{{Groups: []types.Group{group("AWS Lambda", "1")}}},
			}}}

			_, err := newTestService(m, tt.now).GetLastMonthCostsByService(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.start, aws.ToString(m.inputs[0].TimePeriod.Start))
			assert.Equal(t, tt.end, aws.ToString(m.inputs[0].TimePeriod.End))
		})
	}
}

func TestGetLastMonthCostsByServiceEmptyResult(t *testing.T) {
	m := &mockCE{pages: []*costexplorer.GetCostAndUsageOutput{{}}}

	_, err := newTestService(m, time.Now()).GetLastMonthCostsByService(context.Background())
	require.ErrorIs(t, err, errNoData)
}

func TestGetLastMonthCostsByServiceDenied(t *testing.T) {
	m := &mockCE{err: awstest.APIError("AccessDeniedException")}

	_, err := newTestService(m, time.Now()).GetLastMonthCostsByService(context.Background())
	require.Error(t, err)
	assert.Len(t, m.inputs, 1)
}
