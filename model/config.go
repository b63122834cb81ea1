package model

import "time"

// Config is the persisted engine configuration: which accounts belong to the
// project and how to recognise the project's resources.
type Config struct {
	Project              string                   `yaml:"project" validate:"required,min=3"`
	ManagementAccountID  string                   `yaml:"management_account_id" validate:"omitempty,numeric,len=12"`
	CrossAccountRoleName string                   `yaml:"cross_account_role_name" validate:"required"`
	ExternalID           string                   `yaml:"external_id"`
	SessionDuration      time.Duration            `yaml:"session_duration" validate:"gte=15m,lte=12h"`
	Accounts             []AccountConfig          `yaml:"accounts" validate:"dive"`
	Regions              []string                 `yaml:"regions" validate:"min=1,dive,required"`
	ValidationRegions    []string                 `yaml:"validation_regions" validate:"dive,required"`
	Ownership            OwnershipConfig          `yaml:"ownership"`
	Preserve             map[Scope]PreserveConfig `yaml:"preserve"`
	Output               OutputConfig             `yaml:"output"`
	Timeouts             TimeoutConfig            `yaml:"timeouts"`
	Workers              WorkerConfig             `yaml:"workers"`
	CostServiceNames     map[string]string        `yaml:"cost_service_names"`
}

// AccountConfig maps an account id to its environment label.
type AccountConfig struct {
	ID          string `yaml:"id" validate:"required,numeric,len=12"`
	Environment string `yaml:"environment" validate:"required,oneof=dev staging prod management shared"`
	Name        string `yaml:"name"`
}

// OwnershipConfig holds the patterns that decide whether a resource belongs to
// the project.
type OwnershipConfig struct {
	Fragments    []string  `yaml:"fragments" validate:"dive,min=3"`
	Prefixes     []string  `yaml:"prefixes" validate:"dive,min=3"`
	StateBackend []string  `yaml:"state_backend" validate:"dive,min=3"`
	Tags         []TagRule `yaml:"tags" validate:"dive"`
}

// TagRule matches a resource carrying exactly Key=Value.
type TagRule struct {
	Key   string `yaml:"key" validate:"required"`
	Value string `yaml:"value" validate:"required"`
}

// PreserveConfig lists resources a scope must never touch, even when they
// match the ownership patterns.
type PreserveConfig struct {
	Names    []string `yaml:"names"`
	Prefixes []string `yaml:"prefixes"`
}

type OutputConfig struct {
	Dir          string `yaml:"dir" validate:"required"`
	TrackingFile string `yaml:"tracking_file" validate:"required"`
}

type TimeoutConfig struct {
	Operation time.Duration `yaml:"operation" validate:"gt=0"`
	S3Empty   time.Duration `yaml:"s3_empty" validate:"gt=0"`
}

type WorkerConfig struct {
	S3Workers   int `yaml:"s3_workers" validate:"gte=1,lte=32"`
	S3BatchSize int `yaml:"s3_batch_size" validate:"gte=1,lte=1000"`
}

// AccountEnvironment returns the configured environment label for accountID.
func (c Config) AccountEnvironment(accountID string) string {
	for _, a := range c.Accounts {
		if a.ID == accountID {
			return a.Environment
		}
	}
	if accountID == c.ManagementAccountID {
		return "management"
	}
	return ""
}
