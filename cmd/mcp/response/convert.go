package response

import (
	"cmp"
	"slices"
	"sort"
	"time"

	"github.com/elC0mpa/aws-teardown/model"
)

// ConvertAccountInfo converts model.AccountInfo to response.AccountInfo
func ConvertAccountInfo(info *model.AccountInfo) *AccountInfo {
	if info == nil {
		return nil
	}
	return &AccountInfo{
		Provider:    info.Provider,
		AccountID:   info.AccountID,
		AccountName: info.AccountName,
	}
}

// ConvertCostInfo converts model.CostInfo to response.CostInfo
func ConvertCostInfo(info *model.CostInfo) *CostInfo {
	if info == nil {
		return nil
	}

	var services []ServiceCost
	var total float64
	var currency string

	for name, cost := range info.CostGroup {
		services = append(services, ServiceCost{
			Name:   name,
			Amount: cost.Amount,
			Unit:   cost.Unit,
		})
		total += cost.Amount
		if currency == "" {
			currency = cost.Unit
		}
	}

	// Sort by amount descending
	sort.Slice(services, func(i, j int) bool {
		return services[i].Amount > services[j].Amount
	})

	startDate := ""
	if info.Start != nil {
		startDate = *info.Start
	}
	endDate := ""
	if info.End != nil {
		endDate = *info.End
	}

	if currency == "" {
		currency = "USD"
	}

	return &CostInfo{
		StartDate: startDate,
		EndDate:   endDate,
		Services:  services,
		Total:     total,
		Currency:  currency,
	}
}

func ConvertResource(r model.ResourceDescriptor) Resource {
	return Resource{
		Service:    r.ServiceType,
		Kind:       r.Kind,
		Identifier: r.Identifier,
		Name:       r.Name,
		AccountID:  r.AccountID,
		Region:     r.Region,
	}
}

func ConvertResources(rs []model.ResourceDescriptor) []Resource {
	out := make([]Resource, 0, len(rs))
	for _, r := range rs {
		out = append(out, ConvertResource(r))
	}
	return out
}

// ConvertPlan summarizes a dry-run report. Per-service counts are sorted by
// count descending.
func ConvertPlan(report *model.Report, reportPath string) *Plan {
	if report == nil {
		return nil
	}

	plan := &Plan{
		RunID:      report.Summary.RunID,
		Scope:      string(report.Summary.Scope),
		Matched:    len(report.WouldDestroy),
		Resources:  ConvertResources(report.WouldDestroy),
		Errors:     report.Errors,
		ReportPath: reportPath,
	}

	for _, t := range report.Targets {
		if !slices.Contains(plan.Accounts, t.AccountID) {
			plan.Accounts = append(plan.Accounts, t.AccountID)
		}
		if !slices.Contains(plan.Regions, t.Region) {
			plan.Regions = append(plan.Regions, t.Region)
		}
	}

	counts := map[string]int{}
	for _, r := range report.WouldDestroy {
		counts[r.ServiceType]++
	}
	for svc, n := range counts {
		plan.ByService = append(plan.ByService, ServiceCount{Service: svc, Count: n})
	}
	slices.SortFunc(plan.ByService, func(a, b ServiceCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Service, b.Service))
	})

	for _, s := range report.SkippedAccounts {
		plan.SkippedAccounts = append(plan.SkippedAccounts, SkippedAccount{
			AccountID: s.AccountID,
			ErrorKind: s.ErrorKind,
			Error:     s.Error,
		})
	}
	return plan
}

func ConvertValidation(v *model.ValidationVerdict) *Validation {
	if v == nil {
		return nil
	}
	return &Validation{
		Clean:          v.Clean,
		Stragglers:     ConvertResources(v.Stragglers),
		Accounts:       v.Accounts,
		Regions:        v.RegionsScanned,
		ScanErrors:     v.ScanErrors,
		Recommendation: v.Recommendation,
	}
}

// ConvertLazyDeletes keeps only entries in status when status is not empty.
func ConvertLazyDeletes(entries []model.LazyDeleteEntry, status string) []LazyDelete {
	out := []LazyDelete{}
	for _, e := range entries {
		if status != "" && string(e.Status) != status {
			continue
		}
		out = append(out, LazyDelete{
			ID:         e.ID,
			Service:    e.ServiceType,
			ResourceID: e.ResourceID,
			AccountID:  e.AccountID,
			Region:     e.Region,
			Reason:     e.Reason,
			Status:     string(e.Status),
			Attempts:   e.Attempts,
			RunID:      e.RunID,
			UpdatedAt:  e.UpdatedAt.Format(time.RFC3339),
		})
	}
	return out
}
