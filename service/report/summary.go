// Package report folds the outcome stream into the run summary and writes
// the machine-readable artifacts.
package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/elC0mpa/aws-teardown/model"
)

// Fold counts outcomes by status.
func Fold(outcomes []model.DestructionOutcome) model.Counts {
	var c model.Counts
	for _, o := range outcomes {
		c.Add(o)
	}
	return c
}

// Summarize builds the headline of a run. In a dry run the matched count is
// the number of resources that would be destroyed.
func Summarize(run Run, outcomes []model.DestructionOutcome, wouldDestroy, lazyDeletes int) model.Summary {
	counts := Fold(outcomes)
	if run.DryRun {
		counts.Matched = wouldDestroy
	}

	return model.Summary{
		RunID:       run.RunID,
		Status:      status(run, counts),
		Scope:       run.Scope,
		DryRun:      run.DryRun,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Duration:    run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String(),
		Counts:      counts,
		LazyDeletes: lazyDeletes,
	}
}

func status(run Run, c model.Counts) model.RunStatus {
	switch {
	case run.Aborted:
		return model.RunAborted
	case run.Cancelled:
		return model.RunCancelled
	case run.DryRun:
		return model.RunDryRun
	case c.Failed > 0 || c.Deferred > 0:
		return model.RunCompletedWithFailures
	default:
		return model.RunCompleted
	}
}

// Unresolved returns the outcomes a reader has to look at: everything that
// was not destroyed.
func Unresolved(outcomes []model.DestructionOutcome) []model.DestructionOutcome {
	var out []model.DestructionOutcome
	for _, o := range outcomes {
		if o.Status != model.StatusDestroyed {
			out = append(out, o)
		}
	}
	return out
}

// Savings estimates the monthly spend removed by the run: last month's cost
// of every provider service in which at least one resource was destroyed.
// It returns nil when there is nothing to report.
func Savings(costs *model.CostInfo, outcomes []model.DestructionOutcome, serviceNames map[string]string) *model.SavingsEstimate {
	if costs == nil || len(costs.CostGroup) == 0 {
		return nil
	}

	emptied := map[string]bool{}
	for _, o := range outcomes {
		if o.Status != model.StatusDestroyed {
			continue
		}
		if name, ok := serviceNames[o.Resource.ServiceType]; ok {
			emptied[name] = true
		}
	}

	est := &model.SavingsEstimate{}
	if costs.Start != nil {
		est.PeriodStart = *costs.Start
	}
	if costs.End != nil {
		est.PeriodEnd = *costs.End
	}
	for name := range emptied {
		cost, ok := costs.CostGroup[name]
		if !ok || cost.Amount <= 0 {
			continue
		}
		est.Services = append(est.Services, model.ServiceCost{Name: name, Amount: cost.Amount, Unit: cost.Unit})
		est.Total += cost.Amount
		est.Unit = cost.Unit
	}
	if len(est.Services) == 0 {
		return nil
	}

	slices.SortFunc(est.Services, func(a, b model.ServiceCost) int {
		return cmp.Or(cmp.Compare(b.Amount, a.Amount), cmp.Compare(a.Name, b.Name))
	})
	return est
}
