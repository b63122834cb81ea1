package utils

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/elC0mpa/aws-teardown/model"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DrawReport prints the console summary of a run: headline, per-phase
// counts, every resource that was not destroyed, lazy deletes, validation
// and the savings estimate.
func DrawReport(w io.Writer, report model.Report) {
	fmt.Fprintf(w, "\n%s\n", text.FgHiWhite.Sprint(" AWS TEARDOWN"))
	fmt.Fprintf(w, " Run: %s   Scope: %s   Status: %s\n", text.FgBlue.Sprint(report.Summary.RunID), report.Summary.Scope, statusColor(report.Summary.Status))
	fmt.Fprintln(w, text.FgHiBlue.Sprint(" ------------------------------------------------"))

	fmt.Fprintln(w, RenderPhaseTable(report))
	if report.Summary.DryRun {
		fmt.Fprintln(w, RenderWouldDestroyTable(report.WouldDestroy))
	}
	if t := RenderUnresolvedTable(report.Outcomes); t != "" {
		fmt.Fprintln(w, t)
	}
	if len(report.SkippedAccounts) > 0 {
		fmt.Fprintln(w, RenderSkippedAccountsTable(report.SkippedAccounts))
	}
	if len(report.LazyDeletes) > 0 {
		fmt.Fprintln(w, RenderLazyDeleteTable(report.LazyDeletes))
	}
	if report.Validation != nil {
		fmt.Fprintln(w, RenderValidation(*report.Validation))
	}
	if report.Savings != nil {
		fmt.Fprintln(w, RenderSavingsTable(*report.Savings))
		DrawSavingsChart(w, *report.Savings)
	}
}

func statusColor(s model.RunStatus) string {
	switch s {
	case model.RunCompleted, model.RunDryRun:
		return text.FgHiGreen.Sprint(s)
	case model.RunCompletedWithFailures:
		return text.FgHiYellow.Sprint(s)
	default:
		return text.FgHiRed.Sprint(s)
	}
}

func RenderPhaseTable(report model.Report) string {
	tw := table.Table{}
	tw.AppendHeader(table.Row{"#", "Phase", "Matched", "Destroyed", "Skipped", "Deferred", "Failed", "Errors"})

	for _, p := range report.Phases {
		tw.AppendRow(table.Row{p.Number, p.Name, p.Counts.Matched, p.Counts.Destroyed, p.Counts.Skipped, p.Counts.Deferred, colorIfNonZero(p.Counts.Failed), len(p.Errors)})
	}

	c := report.Summary.Counts
	tw.AppendFooter(table.Row{"", "Total", c.Matched, c.Destroyed, c.Skipped, c.Deferred, c.Failed, len(report.Errors)})
	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs(numericColumns(3, 8))
	return tw.Render()
}

func RenderWouldDestroyTable(resources []model.ResourceDescriptor) string {
	tw := table.Table{}
	tw.SetTitle("Would destroy (%d)", len(resources))
	tw.AppendHeader(table.Row{"Account", "Region", "Service", "Resource"})

	sorted := append([]model.ResourceDescriptor(nil), resources...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AccountID != sorted[j].AccountID {
			return sorted[i].AccountID < sorted[j].AccountID
		}
		return sorted[i].Region < sorted[j].Region
	})
	for _, r := range sorted {
		tw.AppendRow(table.Row{text.FgBlue.Sprint(r.AccountID), r.Region, r.ServiceType, r.Label()})
	}
	tw.SetStyle(table.StyleRounded)
	return tw.Render()
}

// RenderUnresolvedTable lists every matched resource that was not destroyed,
// with the reason. It returns "" when there are none.
func RenderUnresolvedTable(outcomes []model.DestructionOutcome) string {
	tw := table.Table{}
	tw.SetTitle("Not destroyed")
	tw.AppendHeader(table.Row{"Status", "Account", "Region", "Resource", "Detail"})

	rows := 0
	for _, o := range outcomes {
		if o.Status == model.StatusDestroyed {
			continue
		}
		detail := o.Detail
		if o.Error != "" {
			detail = strings.TrimSpace(o.ErrorKind + ": " + o.Error)
		}
		tw.AppendRow(table.Row{outcomeColor(o.Status), o.Resource.AccountID, o.Resource.Region, o.Resource.Label(), text.WrapSoft(detail, 60)})
		rows++
	}
	if rows == 0 {
		return ""
	}
	tw.SetStyle(table.StyleRounded)
	return tw.Render()
}

func RenderSkippedAccountsTable(skipped []model.SkippedAccount) string {
	tw := table.Table{}
	tw.SetTitle("Skipped accounts")
	tw.AppendHeader(table.Row{"Account", "First phase", "Kind", "Error"})
	for _, s := range skipped {
		tw.AppendRow(table.Row{text.FgRed.Sprint(s.AccountID), s.Phase, s.ErrorKind, text.WrapSoft(s.Error, 60)})
	}
	tw.SetStyle(table.StyleRounded)
	return tw.Render()
}

func RenderLazyDeleteTable(entries []model.LazyDeleteEntry) string {
	tw := table.Table{}
	tw.SetTitle("Lazy deletes")
	tw.AppendHeader(table.Row{"Status", "Service", "Account", "Region", "Resource", "Window", "Attempts", "Reason"})
	for _, e := range entries {
		status := text.FgYellow.Sprint(e.Status)
		if e.Status == model.LazyDeleteCompleted {
			status = text.FgGreen.Sprint(e.Status)
		}
		window, _ := e.ExpectedConvergenceWindow.MarshalText()
		tw.AppendRow(table.Row{status, e.ServiceType, e.AccountID, e.Region, e.ResourceID, string(window), e.Attempts, text.WrapSoft(e.Reason, 50)})
	}
	tw.SetStyle(table.StyleRounded)
	return tw.Render()
}

func RenderValidation(v model.ValidationVerdict) string {
	var b strings.Builder
	if v.Clean {
		fmt.Fprintf(&b, " %s %d account(s), %d region(s): nothing left behind\n", text.FgHiGreen.Sprint("Validation clean."), len(v.Accounts), len(v.RegionsScanned))
		return b.String()
	}

	tw := table.Table{}
	tw.SetTitle("Validation stragglers (%d)", len(v.Stragglers))
	tw.AppendHeader(table.Row{"Account", "Region", "Resource"})
	for _, r := range v.Stragglers {
		tw.AppendRow(table.Row{r.AccountID, r.Region, text.FgYellow.Sprint(r.Label())})
	}
	for _, e := range v.ScanErrors {
		tw.AppendRow(table.Row{"", "", text.FgRed.Sprint(e)})
	}
	tw.SetStyle(table.StyleRounded)
	b.WriteString(tw.Render())
	if v.Recommendation != "" {
		fmt.Fprintf(&b, "\n %s %s\n", text.FgHiYellow.Sprint("Recommendation:"), v.Recommendation)
	}
	return b.String()
}

func RenderSavingsTable(est model.SavingsEstimate) string {
	tw := table.Table{}
	tw.SetTitle("Estimated monthly savings (%s to %s)", est.PeriodStart, est.PeriodEnd)
	tw.AppendHeader(table.Row{"Service", "Last month"})

	for _, s := range orderCostServices(est.Services) {
		tw.AppendRow(table.Row{text.FgGreen.Sprint(s.Name), fmt.Sprintf("%.2f %s", s.Amount, s.Unit)})
	}
	tw.AppendFooter(table.Row{"Total", fmt.Sprintf("%.2f %s", est.Total, est.Unit)})
	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight}})
	return tw.Render()
}

func orderCostServices(services []model.ServiceCost) []model.ServiceCost {
	sortedServices := append([]model.ServiceCost(nil), services...)
	sort.Slice(sortedServices, func(i, j int) bool {
		return sortedServices[i].Amount > sortedServices[j].Amount
	})
	return sortedServices
}

func outcomeColor(s model.Status) string {
	switch s {
	case model.StatusFailed:
		return text.FgRed.Sprint(s)
	case model.StatusDeferred:
		return text.FgYellow.Sprint(s)
	default:
		return text.FgHiBlack.Sprint(s)
	}
}

func colorIfNonZero(n int) string {
	if n > 0 {
		return text.FgRed.Sprint(n)
	}
	return fmt.Sprint(n)
}

func numericColumns(from, to int) []table.ColumnConfig {
	var cfg []table.ColumnConfig
	for n := from; n <= to; n++ {
		cfg = append(cfg, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	return cfg
}
