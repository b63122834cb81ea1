package model

import "time"

// Commands understood by the CLI.
const (
	CommandDestroy  = "destroy"
	CommandPlan     = "plan"
	CommandValidate = "validate"
	CommandLazyList = "lazy-list"
)

type Flags struct {
	Command string

	// Run mode
	DryRun      bool
	Force       bool
	Scope       string
	Environment string

	// Targeting
	AccountFilter       []string
	Region              string
	RegionSet           bool // --region was given explicitly
	NoCrossAccount      bool
	NoTerraformCleanup  bool
	CloseMemberAccounts bool

	// Timeouts
	S3Timeout time.Duration

	// AWS
	Profile string

	// Files
	ConfigPath string
	OutputDir  string
	LogLevel   string
}
