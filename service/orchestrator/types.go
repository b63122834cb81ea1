package orchestrator

import (
	"context"
	"io"

	"github.com/elC0mpa/aws-teardown/model"
	"github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/confirm"
	"github.com/elC0mpa/aws-teardown/service/lazydelete"
	"github.com/elC0mpa/aws-teardown/service/report"
)

type orchestratorService struct {
	cfg         model.Config
	sessions    service.SessionManager
	registry    service.Registry
	store       lazydelete.Store
	costService service.CostService
	reporter    report.ReportService
	confirmer   confirm.ConfirmService
	out         io.Writer
}

// Outcome is what a workflow hands back to main besides an error.
type Outcome struct {
	Report *model.Report
	Paths  report.Paths
}

type OrchestratorService interface {
	Orchestrate(ctx context.Context, flags model.Flags, runID string) (*Outcome, error)
}
