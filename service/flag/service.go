package flag

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elC0mpa/aws-teardown/model"
	"github.com/elC0mpa/aws-teardown/service/settings"
	"github.com/spf13/cobra"
)

var errScope = errors.New("invalid scope")

func NewService(out io.Writer) *service {
	return &service{out: out}
}

// GetParsedFlags parses args (without the program name). A zero Command with
// a nil error means cobra already handled the invocation, for example --help.
func (s *service) GetParsedFlags(args []string) (model.Flags, error) {
	env := settings.Env()
	var parsed model.Flags

	var s3TimeoutSeconds int

	root := &cobra.Command{
		Use:   "aws-teardown",
		Short: "Discover and destroy a project's AWS resources across accounts and regions",
		Long: `aws-teardown enumerates every resource owned by a project, destroys them in
dependency-safe phases across accounts and regions, validates that nothing
is left behind and writes a JSON report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(s.out)
	root.SetErr(s.out)
	root.SetArgs(args)

	root.PersistentFlags().StringVarP(&parsed.ConfigPath, "config", "c", env.ConfigPath, "path to the teardown YAML config")
	root.PersistentFlags().StringVar(&parsed.Region, "region", env.Region, "home region for global services and the base session")
	root.PersistentFlags().StringVar(&parsed.Profile, "profile", env.Profile, "AWS shared config profile")
	root.PersistentFlags().StringVar(&parsed.OutputDir, "output-dir", "", "directory for the report, run log and metrics (overrides config)")
	root.PersistentFlags().StringVar(&parsed.LogLevel, "log-level", env.LogLevel, "console log level (debug, info, warn, error)")
	root.PersistentFlags().StringSliceVar(&parsed.AccountFilter, "account-filter", nil, "only process these account ids")
	root.PersistentFlags().StringVar(&parsed.Scope, "scope", string(model.ScopeFull), "full, or environment to leave the management account alone and apply the environment preserve set")
	root.PersistentFlags().StringVar(&parsed.Environment, "environment", "", "with --scope environment, only target accounts of this environment")

	destroyFlags := func(cmd *cobra.Command) {
		cmd.Flags().BoolVar(&parsed.NoCrossAccount, "no-cross-account", false, "only touch the base account")
		cmd.Flags().BoolVar(&parsed.NoTerraformCleanup, "no-terraform-cleanup", false, "keep the terraform state bucket and lock table")
		cmd.Flags().IntVar(&s3TimeoutSeconds, "s3-timeout", 0, "seconds allowed for emptying one bucket (overrides config)")
	}

	run := func(command string) func(*cobra.Command, []string) error {
		return func(*cobra.Command, []string) error {
			if parsed.Scope != string(model.ScopeFull) && parsed.Scope != string(model.ScopeEnvironment) {
				return fmt.Errorf("%w: %q", errScope, parsed.Scope)
			}
			if parsed.Environment != "" && parsed.Scope != string(model.ScopeEnvironment) {
				return fmt.Errorf("%w: --environment needs --scope environment", errScope)
			}
			parsed.Command = command
			return nil
		}
	}

	destroy := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy every matched resource, phase by phase",
		Args:  cobra.NoArgs,
		RunE:  run(model.CommandDestroy),
	}
	destroyFlags(destroy)
	destroy.Flags().BoolVar(&parsed.DryRun, "dry-run", false, "enumerate and match only; change nothing")
	destroy.Flags().BoolVar(&parsed.Force, "force", false, "skip the confirmation phrase")
	destroy.Flags().BoolVar(&parsed.CloseMemberAccounts, "close-accounts", false, "close configured member accounts in the organization phase")

	plan := &cobra.Command{
		Use:   "plan",
		Short: "Show what destroy would remove without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed.DryRun = true
			return run(model.CommandPlan)(cmd, args)
		},
	}
	destroyFlags(plan)

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Scan every account and region for resources that are still present",
		Args:  cobra.NoArgs,
		RunE:  run(model.CommandValidate),
	}
	validate.Flags().BoolVar(&parsed.NoCrossAccount, "no-cross-account", false, "only scan the base account")

	lazyList := &cobra.Command{
		Use:   "lazy-list",
		Short: "Print the lazy-delete tracking file",
		Args:  cobra.NoArgs,
		RunE:  run(model.CommandLazyList),
	}

	root.AddCommand(destroy, plan, validate, lazyList)

	executed, err := root.ExecuteC()
	if err != nil {
		return model.Flags{}, err
	}
	parsed.RegionSet = executed.Flags().Changed("region")
	if s3TimeoutSeconds < 0 {
		return model.Flags{}, fmt.Errorf("--s3-timeout must be a positive number of seconds, got %d", s3TimeoutSeconds)
	}
	parsed.S3Timeout = time.Duration(s3TimeoutSeconds) * time.Second

	return parsed, nil
}
