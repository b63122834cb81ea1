package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	awsconfig "github.com/elC0mpa/aws-teardown/service/aws/config"
	awscostexplorer "github.com/elC0mpa/aws-teardown/service/aws/costexplorer"
	awssts "github.com/elC0mpa/aws-teardown/service/aws/sts"
	"github.com/elC0mpa/aws-teardown/service/confirm"
	"github.com/elC0mpa/aws-teardown/service/flag"
	"github.com/elC0mpa/aws-teardown/service/lazydelete"
	"github.com/elC0mpa/aws-teardown/service/logging"
	"github.com/elC0mpa/aws-teardown/service/orchestrator"
	"github.com/elC0mpa/aws-teardown/service/phase"
	"github.com/elC0mpa/aws-teardown/service/report"
	"github.com/elC0mpa/aws-teardown/service/settings"
	"github.com/elC0mpa/aws-teardown/utils"
	"github.com/google/uuid"
)

var version = "dev"

const (
	exitOK       = 0
	exitFailure  = 1
	exitDeclined = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	utils.DrawBanner(os.Stdout, version)

	flagService := flag.NewService(os.Stdout)
	flags, err := flagService.GetParsedFlags(os.Args[1:])
	if err != nil {
		clog.Error("invalid arguments", "error", err.Error())
		return exitFailure
	}
	if flags.Command == "" {
		return exitOK
	}

	cfg, err := settings.NewService().Load(flags.ConfigPath)
	if err != nil {
		clog.Error("invalid config", "path", flags.ConfigPath, "error", err.Error())
		return exitFailure
	}
	if flags.OutputDir != "" {
		cfg.Output.Dir = flags.OutputDir
	}

	runID := uuid.NewString()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, logPath, closeLog := logging.Setup(ctx, os.Stderr, flags.LogLevel, cfg.Output.Dir, runID)
	defer closeLog()
	clog.InfoContext(ctx, "starting run", "command", flags.Command, "project", cfg.Project, "log", logPath)

	awsCfg, err := awsconfig.NewService().GetAWSCfg(ctx, flags.Region, flags.Profile)
	if err != nil {
		clog.ErrorContext(ctx, "failed to load AWS config", "error", err.Error())
		return exitFailure
	}

	sessions := awssts.NewService(awsCfg, awssts.SessionConfig{
		Project:             cfg.Project,
		RoleName:            cfg.CrossAccountRoleName,
		ExternalID:          cfg.ExternalID,
		RunID:               runID,
		Duration:            cfg.SessionDuration,
		CrossAccountEnabled: !flags.NoCrossAccount,
	})

	// Cost Explorer only answers in us-east-1.
	ceCfg := awsCfg.Copy()
	ceCfg.Region = "us-east-1"

	orchestratorService := orchestrator.NewService(
		cfg,
		sessions,
		phase.NewDefaultRegistry(cfg),
		lazydelete.NewFile(cfg.Output.TrackingFile),
		awscostexplorer.NewService(ceCfg),
		report.NewService(cfg.Output.Dir),
		confirm.NewService(os.Stdin, os.Stdout),
		os.Stdout,
	)

	_, err = orchestratorService.Orchestrate(ctx, flags, runID)
	return exitCode(ctx, err)
}

// exitCode maps a workflow error to the process exit status. Unresolved
// resources and validator stragglers are reported, not failures.
func exitCode(ctx context.Context, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, confirm.ErrDeclined):
		clog.WarnContext(ctx, "nothing was destroyed", "reason", err.Error())
		return exitDeclined
	case errors.Is(err, orchestrator.ErrCancelled):
		clog.WarnContext(ctx, "run cancelled, partial report written")
		return exitFailure
	default:
		clog.ErrorContext(ctx, "run failed", "error", err.Error())
		return exitFailure
	}
}
