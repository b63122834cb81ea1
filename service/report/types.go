package report

import (
	"context"
	"time"

	"github.com/elC0mpa/aws-teardown/model"
)

// Run is what the reporter needs to know about a run besides its outcomes.
type Run struct {
	RunID      string
	Scope      model.Scope
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool
	Aborted    bool
}

type service struct {
	dir string
}

// Paths are the files a report was written to. Empty means not written.
type Paths struct {
	JSON    string
	Metrics string
}

type ReportService interface {
	Write(ctx context.Context, report model.Report) Paths
}
