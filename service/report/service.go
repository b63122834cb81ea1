package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	"github.com/gosimple/slug"
	"github.com/prometheus/client_golang/prometheus"
)

var errWrite = errors.New("writing report")

func NewService(dir string) *service {
	return &service{dir: dir}
}

func JSONName(runID string) string { return "teardown-report-" + slug.Make(runID) + ".json" }

func MetricsName(runID string) string { return "teardown-" + slug.Make(runID) + ".prom" }

// Write stores the JSON report and the metrics textfile. Failures are logged
// and never returned: a run that destroyed resources must not fail because
// its report could not be written.
func (s *service) Write(ctx context.Context, report model.Report) Paths {
	var paths Paths

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		clog.ErrorContext(ctx, "cannot create output directory", "dir", s.dir, "error", err.Error())
		return paths
	}

	jsonPath := filepath.Join(s.dir, JSONName(report.Summary.RunID))
	if err := writeJSON(jsonPath, report); err != nil {
		clog.ErrorContext(ctx, "failed to write report", "path", jsonPath, "error", err.Error())
	} else {
		paths.JSON = jsonPath
	}

	metricsPath := filepath.Join(s.dir, MetricsName(report.Summary.RunID))
	if err := writeMetrics(metricsPath, report); err != nil {
		clog.ErrorContext(ctx, "failed to write metrics", "path", metricsPath, "error", err.Error())
	} else {
		paths.Metrics = metricsPath
	}

	return paths
}

func writeJSON(path string, report model.Report) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", errWrite, err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: %w", errWrite, err)
	}
	return nil
}

// writeMetrics renders the run in the node-exporter textfile format.
func writeMetrics(path string, report model.Report) error {
	reg := prometheus.NewRegistry()

	resources := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "teardown_resources_total",
		Help: "Matched resources by service and outcome status.",
	}, []string{"service", "status"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "teardown_run_duration_seconds",
		Help: "Wall time of the run.",
	})
	lazy := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "teardown_lazy_deletes",
		Help: "Lazy-delete entries recorded by the run.",
	})
	stragglers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "teardown_validation_stragglers",
		Help: "Matched resources found by the validator after destruction.",
	})
	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teardown_run_info",
		Help: "Constant 1, labelled with the run identity and final status.",
	}, []string{"run_id", "status", "scope", "dry_run"})

	reg.MustRegister(resources, duration, lazy, stragglers, info)

	for _, o := range report.Outcomes {
		resources.WithLabelValues(o.Resource.ServiceType, string(o.Status)).Inc()
	}
	for _, r := range report.WouldDestroy {
		resources.WithLabelValues(r.ServiceType, "would_destroy").Inc()
	}
	duration.Set(report.Summary.FinishedAt.Sub(report.Summary.StartedAt).Seconds())
	lazy.Set(float64(len(report.LazyDeletes)))
	if report.Validation != nil {
		stragglers.Set(float64(len(report.Validation.Stragglers)))
	}
	info.WithLabelValues(report.Summary.RunID, string(report.Summary.Status), string(report.Summary.Scope), fmt.Sprint(report.Summary.DryRun)).Set(1)

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("%w: %w", errWrite, err)
	}
	return nil
}
