package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	"github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/confirm"
	"github.com/elC0mpa/aws-teardown/service/lazydelete"
	"github.com/elC0mpa/aws-teardown/service/matcher"
	"github.com/elC0mpa/aws-teardown/service/phase"
	"github.com/elC0mpa/aws-teardown/service/report"
	"github.com/elC0mpa/aws-teardown/service/validator"
	"github.com/elC0mpa/aws-teardown/utils"
)

var (
	// ErrCancelled is returned when a signal stopped the run part way.
	ErrCancelled = errors.New("run cancelled")

	errUnknownCommand = errors.New("unknown command")
	errNoTargets      = errors.New("no targets left after filtering")
)

func NewService(
	cfg model.Config,
	sessions service.SessionManager,
	registry service.Registry,
	store lazydelete.Store,
	costService service.CostService,
	reporter report.ReportService,
	confirmer confirm.ConfirmService,
	out io.Writer,
) *orchestratorService {
	return &orchestratorService{
		cfg:         cfg,
		sessions:    sessions,
		registry:    registry,
		store:       store,
		costService: costService,
		reporter:    reporter,
		confirmer:   confirmer,
		out:         out,
	}
}

func (s *orchestratorService) Orchestrate(ctx context.Context, flags model.Flags, runID string) (*Outcome, error) {
	if flags.Command == model.CommandLazyList {
		return nil, s.lazyListWorkflow(ctx)
	}

	identity, err := s.sessions.GetAccountInfo(ctx)
	if err != nil {
		return nil, err
	}
	clog.InfoContext(ctx, "base identity", "account", identity.AccountID, "arn", identity.AccountName)

	exec, err := BuildExecutionContext(flags, s.cfg, runID)
	if err != nil {
		return nil, err
	}
	targets := BuildTargets(s.cfg, exec, identity.AccountID)
	if len(targets) == 0 {
		return nil, errNoTargets
	}

	switch flags.Command {
	case model.CommandDestroy, model.CommandPlan:
		return s.destroyWorkflow(ctx, targets, exec)
	case model.CommandValidate:
		return s.validateWorkflow(ctx, targets, exec)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownCommand, flags.Command)
	}
}

func (s *orchestratorService) patterns(exec model.ExecutionContext) matcher.Patterns {
	return matcher.NewPatterns(s.cfg, exec)
}

func (s *orchestratorService) validator(exec model.ExecutionContext) validator.ValidatorService {
	return validator.NewService(s.sessions, s.registry, s.patterns(exec),
		validator.WithRegions(s.cfg.ValidationRegions...),
		validator.WithLazyDeletes(s.store),
	)
}

func (s *orchestratorService) scheduler(exec model.ExecutionContext) phase.SchedulerService {
	return phase.NewScheduler(s.sessions, s.registry, s.patterns(exec), s.store,
		phase.WithManagementAccount(s.cfg.ManagementAccountID),
		phase.WithValidator(s.validator(exec)),
	)
}

// destroyWorkflow previews the plan, asks for confirmation and runs every
// phase. A dry run stops after the preview.
func (s *orchestratorService) destroyWorkflow(ctx context.Context, targets []model.Target, exec model.ExecutionContext) (*Outcome, error) {
	started := time.Now().UTC()

	preview := exec
	preview.DryRun = true
	utils.StartSpinner(s.out, "enumerating resources")
	planned, err := s.scheduler(preview).Run(ctx, targets, preview)
	utils.StopSpinner()

	if exec.DryRun || err != nil {
		return s.finish(ctx, started, targets, exec, planned, err)
	}

	if err := s.confirmer.Confirm(ctx, s.cfg.Project, confirm.Plan{
		Accounts: accountsOf(targets),
		Regions:  exec.Regions,
		Services: servicesOf(planned.WouldDestroy),
		Matched:  len(planned.WouldDestroy),
	}, exec); err != nil {
		return nil, err
	}

	utils.StartSpinner(s.out, "destroying")
	result, err := s.scheduler(exec).Run(ctx, targets, exec)
	utils.StopSpinner()
	return s.finish(ctx, started, targets, exec, result, err)
}

func (s *orchestratorService) finish(ctx context.Context, started time.Time, targets []model.Target, exec model.ExecutionContext, result *phase.Result, runErr error) (*Outcome, error) {
	if result == nil {
		result = &phase.Result{}
	}

	run := report.Run{
		RunID:      exec.RunID,
		Scope:      exec.Scope,
		DryRun:     exec.DryRun,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Cancelled:  result.Cancelled,
		Aborted:    errors.Is(runErr, phase.ErrAborted),
	}

	rep := model.Report{
		Summary:         report.Summarize(run, result.Outcomes, len(result.WouldDestroy), len(result.LazyDeletes)),
		Targets:         targets,
		Phases:          result.Phases,
		Outcomes:        result.Outcomes,
		WouldDestroy:    result.WouldDestroy,
		LazyDeletes:     result.LazyDeletes,
		SkippedAccounts: result.SkippedAccounts,
		Validation:      result.Validation,
		Errors:          result.Errors,
	}
	if rep.Summary.Destroyed > 0 {
		rep.Savings = s.savings(ctx, result.Outcomes)
	}

	warnStragglers(ctx, rep.Validation)

	paths := s.reporter.Write(ctx, rep)
	utils.DrawReport(s.out, rep)
	if paths.JSON != "" {
		fmt.Fprintf(s.out, " Report: %s\n", paths.JSON)
	}

	outcome := &Outcome{Report: &rep, Paths: paths}
	switch {
	case runErr != nil:
		return outcome, runErr
	case result.Cancelled:
		return outcome, ErrCancelled
	default:
		return outcome, nil
	}
}

// savings never fails the run: no cost data simply means no estimate.
func (s *orchestratorService) savings(ctx context.Context, outcomes []model.DestructionOutcome) *model.SavingsEstimate {
	if s.costService == nil {
		return nil
	}
	costs, err := s.costService.GetLastMonthCostsByService(ctx)
	if err != nil {
		clog.WarnContext(ctx, "cost data unavailable, omitting savings estimate", "error", err.Error())
		return nil
	}
	return report.Savings(costs, outcomes, s.cfg.CostServiceNames)
}

func (s *orchestratorService) validateWorkflow(ctx context.Context, targets []model.Target, exec model.ExecutionContext) (*Outcome, error) {
	started := time.Now().UTC()

	utils.StartSpinner(s.out, "scanning")
	verdict := s.validator(exec).Validate(ctx, targets, exec)
	utils.StopSpinner()

	rep := model.Report{
		Summary:    report.Summarize(report.Run{RunID: exec.RunID, Scope: exec.Scope, StartedAt: started, FinishedAt: time.Now().UTC()}, nil, 0, 0),
		Targets:    targets,
		Validation: &verdict,
		Errors:     verdict.ScanErrors,
	}
	warnStragglers(ctx, &verdict)

	paths := s.reporter.Write(ctx, rep)
	fmt.Fprintln(s.out, utils.RenderValidation(verdict))
	return &Outcome{Report: &rep, Paths: paths}, nil
}

// warnStragglers logs what the validator found. Stragglers are reported,
// they do not fail the run.
func warnStragglers(ctx context.Context, v *model.ValidationVerdict) {
	if v == nil || len(v.Stragglers) == 0 {
		return
	}
	failure := &awserr.ValidationFailure{}
	for _, r := range v.Stragglers {
		failure.Stragglers = append(failure.Stragglers, r.Label())
	}
	clog.WarnContext(ctx, "validation found remaining resources", "error", failure.Error(), "recommendation", v.Recommendation)
}

func (s *orchestratorService) lazyListWorkflow(ctx context.Context) error {
	entries, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(s.out, " No lazy-delete entries.")
		return nil
	}
	fmt.Fprintln(s.out, utils.RenderLazyDeleteTable(entries))
	return nil
}
