package orchestrator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/elC0mpa/aws-teardown/model"
)

// ErrUnknownRegion is returned when --region names a region the config does
// not target.
var ErrUnknownRegion = errors.New("region is not in the configured regions")

// BuildExecutionContext freezes the run-wide settings from the flags and the
// config. Flags win over config.
func BuildExecutionContext(flags model.Flags, cfg model.Config, runID string) (model.ExecutionContext, error) {
	exec := model.ExecutionContext{
		RunID:               runID,
		Scope:               model.Scope(flags.Scope),
		Environment:         flags.Environment,
		DryRun:              flags.DryRun,
		Force:               flags.Force,
		AccountFilter:       slices.Clone(flags.AccountFilter),
		CrossAccountEnabled: !flags.NoCrossAccount,
		CloseMemberAccounts: flags.CloseMemberAccounts,
		TerraformCleanup:    !flags.NoTerraformCleanup,
		Regions:             slices.Clone(cfg.Regions),
		OperationTimeout:    cfg.Timeouts.Operation,
		S3EmptyTimeout:      cfg.Timeouts.S3Empty,
		MaxWorkers:          cfg.Workers.S3Workers,
		BatchSize:           cfg.Workers.S3BatchSize,
	}
	if exec.Scope == "" {
		exec.Scope = model.ScopeFull
	}
	if flags.S3Timeout > 0 {
		exec.S3EmptyTimeout = flags.S3Timeout
	}
	// The home region comes first: global destroyers run there.
	i := slices.Index(exec.Regions, flags.Region)
	if i < 0 && flags.RegionSet {
		return model.ExecutionContext{}, fmt.Errorf("%w: --region %s (configured: %v)", ErrUnknownRegion, flags.Region, exec.Regions)
	}
	if i > 0 {
		exec.Regions = slices.Insert(slices.Delete(exec.Regions, i, i+1), 0, flags.Region)
	}
	return exec, nil
}

// BuildTargets expands the configured accounts over the run's regions. The
// base account is always a target; without cross-account access it is the
// only one. Environment scope never reaches the management account and, with
// an environment set, keeps only that environment's accounts.
func BuildTargets(cfg model.Config, exec model.ExecutionContext, baseAccount string) []model.Target {
	type acct struct{ id, env string }

	var accounts []acct
	if baseAccount != "" {
		accounts = append(accounts, acct{id: baseAccount, env: cfg.AccountEnvironment(baseAccount)})
	}
	if exec.CrossAccountEnabled {
		for _, a := range cfg.Accounts {
			if a.ID != baseAccount {
				accounts = append(accounts, acct{id: a.ID, env: a.Environment})
			}
		}
		if m := cfg.ManagementAccountID; m != "" && m != baseAccount && exec.Scope != model.ScopeEnvironment &&
			!slices.ContainsFunc(cfg.Accounts, func(a model.AccountConfig) bool { return a.ID == m }) {
			accounts = append(accounts, acct{id: m, env: "management"})
		}
	}

	var targets []model.Target
	for _, a := range accounts {
		if !exec.AccountAllowed(a.id) {
			continue
		}
		if exec.Scope == model.ScopeEnvironment && (a.id == cfg.ManagementAccountID ||
			(exec.Environment != "" && a.env != exec.Environment)) {
			continue
		}
		for _, region := range exec.Regions {
			targets = append(targets, model.Target{AccountID: a.id, Region: region, Environment: a.env})
		}
	}
	return targets
}

func accountsOf(targets []model.Target) []string {
	var ids []string
	for _, t := range targets {
		if !slices.Contains(ids, t.AccountID) {
			ids = append(ids, t.AccountID)
		}
	}
	return ids
}

func servicesOf(resources []model.ResourceDescriptor) []string {
	var names []string
	for _, r := range resources {
		names = append(names, r.ServiceType)
	}
	slices.Sort(names)
	return slices.Compact(names)
}
