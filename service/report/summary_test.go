package report

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/elC0mpa/aws-teardown/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func outcome(service, id string, status model.Status) model.DestructionOutcome {
	return model.DestructionOutcome{Resource: model.ResourceDescriptor{ServiceType: service, Identifier: id}, Status: status}
}

func TestSummarize(t *testing.T) {
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	outcomes := []model.DestructionOutcome{
		outcome("s3", "a", model.StatusDestroyed),
		outcome("s3", "b", model.StatusDestroyed),
		outcome("s3", "c", model.StatusDeferred),
		outcome("kms", "k", model.StatusSkipped),
	}

	tests := []struct {
		name string
		run  Run
		want model.RunStatus
	}{
		{name: "deferred is a failure", run: Run{}, want: model.RunCompletedWithFailures},
		{name: "cancelled", run: Run{Cancelled: true}, want: model.RunCancelled},
		{name: "aborted wins", run: Run{Cancelled: true, Aborted: true}, want: model.RunAborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run.StartedAt, tt.run.FinishedAt = start, start.Add(90*time.Second)
			got := Summarize(tt.run, outcomes, 0, 1)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, model.Counts{Matched: 4, Destroyed: 2, Skipped: 1, Deferred: 1}, got.Counts)
			assert.Equal(t, "1m30s", got.Duration)
			assert.Equal(t, 1, got.LazyDeletes)
		})
	}
}

func TestSummarizeDryRunCountsWouldDestroy(t *testing.T) {
	got := Summarize(Run{DryRun: true}, nil, 7, 0)

	assert.Equal(t, model.RunDryRun, got.Status)
	assert.Equal(t, 7, got.Matched)
	assert.Zero(t, got.Destroyed)
}

func TestSummarizeCleanRun(t *testing.T) {
	got := Summarize(Run{}, []model.DestructionOutcome{outcome("sns", "t", model.StatusDestroyed), outcome("sns", "u", model.StatusSkipped)}, 0, 0)

	assert.Equal(t, model.RunCompleted, got.Status)
}

func TestUnresolved(t *testing.T) {
	got := Unresolved([]model.DestructionOutcome{
		outcome("s3", "a", model.StatusDestroyed),
		outcome("s3", "b", model.StatusFailed),
		outcome("s3", "c", model.StatusSkipped),
	})

	assert.Len(t, got, 2)
}

func TestSavings(t *testing.T) {
	costs := &model.CostInfo{
		DateInterval: model.DateInterval{Start: aws.String("2026-04-01"), End: aws.String("2026-05-01")},
		CostGroup: model.CostGroup{
			"Amazon Simple Storage Service": {Amount: 12.5, Unit: "USD"},
			"AmazonCloudWatch":              {Amount: 3, Unit: "USD"},
			"Amazon CloudFront":             {Amount: 40, Unit: "USD"},
		},
	}
	names := map[string]string{"s3": "Amazon Simple Storage Service", "cloudwatch-logs": "AmazonCloudWatch", "cloudwatch-alarms": "AmazonCloudWatch", "cloudfront": "Amazon CloudFront"}
	outcomes := []model.DestructionOutcome{
		outcome("s3", "a", model.StatusDestroyed),
		outcome("cloudwatch-logs", "l", model.StatusDestroyed),
		outcome("cloudwatch-alarms", "x", model.StatusDestroyed),
		outcome("cloudfront", "d", model.StatusDeferred),
	}

	got := Savings(costs, outcomes, names)

	want := &model.SavingsEstimate{
		PeriodStart: "2026-04-01",
		PeriodEnd:   "2026-05-01",
		Services: []model.ServiceCost{
			{Name: "Amazon Simple Storage Service", Amount: 12.5, Unit: "USD"},
			{Name: "AmazonCloudWatch", Amount: 3, Unit: "USD"},
		},
		Total: 15.5,
		Unit:  "USD",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("savings mismatch (-want +got):\n%s", diff)
	}
}

func TestSavingsOmittedWithoutData(t *testing.T) {
	assert.Nil(t, Savings(nil, []model.DestructionOutcome{outcome("s3", "a", model.StatusDestroyed)}, map[string]string{"s3": "Amazon Simple Storage Service"}))
	assert.Nil(t, Savings(&model.CostInfo{CostGroup: model.CostGroup{"AWS Lambda": {Amount: 1}}}, nil, nil))
}
