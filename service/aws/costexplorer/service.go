// Package awscostexplorer reads last month's bill per service for the
// savings estimate.
package awscostexplorer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/elC0mpa/aws-teardown/model"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const costsAggregation = "UnblendedCost"

var errNoData = errors.New("cost explorer returned no data")

func NewService(awsconfig aws.Config) *service {
	return NewServiceWithClient(costexplorer.NewFromConfig(awsconfig))
}

func NewServiceWithClient(client CostExplorerAPI) *service {
	return &service{client: client, retry: retry.Default, now: time.Now}
}

// GetLastMonthCostsByService returns the last full calendar month.
func (s *service) GetLastMonthCostsByService(ctx context.Context) (*model.CostInfo, error) {
	// Step back from the 1st: AddDate normalises Mar 31 - 1 month to Mar 3.
	return s.GetMonthCostsByService(ctx, s.getFirstDayOfMonth(s.now()).AddDate(0, -1, 0))
}

// GetMonthCostsByService returns the unblended cost per service for the
// calendar month containing month. Services with no spend are left out.
func (s *service) GetMonthCostsByService(ctx context.Context, month time.Time) (*model.CostInfo, error) {
	firstOfMonth := s.getFirstDayOfMonth(month)

	input := &costexplorer.GetCostAndUsageInput{
		Granularity: types.GranularityMonthly,
		TimePeriod: &types.DateInterval{
			Start: aws.String(firstOfMonth.Format(time.DateOnly)),
			End:   aws.String(firstOfMonth.AddDate(0, 1, 0).Format(time.DateOnly)),
		},
		Metrics: []string{costsAggregation},
		GroupBy: []types.GroupDefinition{
			{
				Key:  aws.String("SERVICE"),
				Type: types.GroupDefinitionTypeDimension,
			},
		},
	}

	info := &model.CostInfo{CostGroup: model.CostGroup{}}
	for {
		output, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*costexplorer.GetCostAndUsageOutput, error) {
			return s.client.GetCostAndUsage(ctx, input)
		})
		if err != nil {
			return nil, fmt.Errorf("querying cost and usage: %w", err)
		}
		if len(output.ResultsByTime) == 0 {
			return nil, errNoData
		}

		result := output.ResultsByTime[0]
		if result.TimePeriod != nil && info.Start == nil {
			info.Start, info.End = result.TimePeriod.Start, result.TimePeriod.End
		}
		for name, cost := range s.filterGroups(result.Groups) {
			info.CostGroup[name] = cost
		}

		if output.NextPageToken == nil {
			return info, nil
		}
		input.NextPageToken = output.NextPageToken
	}
}

func (s *service) getFirstDayOfMonth(month time.Time) time.Time {
	return time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (s *service) filterGroups(results []types.Group) model.CostGroup {
	costGroups := model.CostGroup{}

	for _, g := range results {
		metric, ok := g.Metrics[costsAggregation]
		if !ok || metric.Amount == nil || len(g.Keys) == 0 {
			continue
		}
		amount, err := strconv.ParseFloat(*metric.Amount, 64)
		if err != nil || amount == 0 {
			continue
		}
		costGroups[g.Keys[0]] = struct {
			Amount float64
			Unit   string
		}{
			Amount: amount,
			Unit:   aws.ToString(metric.Unit),
		}
	}

	return costGroups
}
