package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/elC0mpa/aws-teardown/model"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	errRead     = errors.New("reading config")
	errParse    = errors.New("parsing config")
	errValidate = errors.New("invalid config")
)

const (
	defaultConfigPath      = "teardown.yaml"
	defaultRegion          = "us-east-1"
	defaultRoleName        = "OrganizationAccountAccessRole"
	defaultOutputDir       = "teardown-output"
	defaultTrackingFile    = "lazy-deletes.json"
	defaultSessionDuration = time.Hour
	defaultOperationTimout = 15 * time.Minute
	defaultS3EmptyTimeout  = 30 * time.Minute
	defaultS3Workers       = 4
	defaultS3BatchSize     = 1000
)

// SupportedRegions are the commercial regions enabled on every account. The
// validator scans all of them unless validation_regions is set.
var SupportedRegions = []string{
	"us-east-1", "us-east-2", "us-west-1", "us-west-2",
	"ca-central-1", "sa-east-1",
	"eu-central-1", "eu-west-1", "eu-west-2", "eu-west-3", "eu-north-1",
	"ap-south-1", "ap-northeast-1", "ap-northeast-2", "ap-northeast-3",
	"ap-southeast-1", "ap-southeast-2",
}

// defaultCostServiceNames maps destroyer keys to Cost Explorer SERVICE
// dimension values.
var defaultCostServiceNames = map[string]string{
	"dynamodb-state-lock": "Amazon DynamoDB",
	"cloudfront":          "Amazon CloudFront",
	"wafv2":               "AWS WAF",
	"cloudtrail":          "AWS CloudTrail",
	"cloudwatch-logs":     "AmazonCloudWatch",
	"s3":                  "Amazon Simple Storage Service",
	"lambda":              "AWS Lambda",
	"rds":                 "Amazon Relational Database Service",
	"cloudwatch-alarms":   "AmazonCloudWatch",
	"sns":                 "Amazon Simple Notification Service",
	"route53":             "Amazon Route 53",
	"kms":                 "AWS Key Management Service",
	"ssm":                 "AWS Systems Manager",
	"ec2-orphans":         "EC2 - Other",
	"elb-orphans":         "Amazon Elastic Load Balancing",
}

func NewService() *service {
	return &service{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Load reads, defaults and validates the YAML config at path.
func (s *service) Load(path string) (model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Config{}, fmt.Errorf("%w: %w", errRead, err)
	}
	return s.Parse(data)
}

func (s *service) Parse(data []byte) (model.Config, error) {
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("%w: %w", errParse, err)
	}

	applyDefaults(&cfg)

	if err := s.validate.Struct(cfg); err != nil {
		return model.Config{}, fmt.Errorf("%w: %w", errValidate, err)
	}
	if len(cfg.Ownership.Fragments)+len(cfg.Ownership.Prefixes)+len(cfg.Ownership.Tags) == 0 {
		return model.Config{}, fmt.Errorf("%w: ownership needs at least one fragment, prefix or tag rule", errValidate)
	}
	for scope := range cfg.Preserve {
		if scope != model.ScopeFull && scope != model.ScopeEnvironment {
			return model.Config{}, fmt.Errorf("%w: unknown preserve scope %q", errValidate, scope)
		}
	}

	return cfg, nil
}

func applyDefaults(cfg *model.Config) {
	if cfg.CrossAccountRoleName == "" {
		cfg.CrossAccountRoleName = defaultRoleName
	}
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = defaultSessionDuration
	}
	if len(cfg.Regions) == 0 {
		cfg.Regions = []string{getEnvOrDefault("AWS_REGION", defaultRegion)}
	}
	if len(cfg.ValidationRegions) == 0 {
		cfg.ValidationRegions = slices.Clone(SupportedRegions)
		for _, r := range cfg.Regions {
			if !slices.Contains(cfg.ValidationRegions, r) {
				cfg.ValidationRegions = append(cfg.ValidationRegions, r)
			}
		}
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = defaultOutputDir
	}
	if cfg.Output.TrackingFile == "" {
		cfg.Output.TrackingFile = defaultTrackingFile
	}
	if !filepath.IsAbs(cfg.Output.TrackingFile) {
		cfg.Output.TrackingFile = filepath.Join(cfg.Output.Dir, cfg.Output.TrackingFile)
	}
	if cfg.Timeouts.Operation == 0 {
		cfg.Timeouts.Operation = defaultOperationTimout
	}
	if cfg.Timeouts.S3Empty == 0 {
		cfg.Timeouts.S3Empty = defaultS3EmptyTimeout
	}
	if cfg.Workers.S3Workers == 0 {
		cfg.Workers.S3Workers = defaultS3Workers
	}
	if cfg.Workers.S3BatchSize == 0 {
		cfg.Workers.S3BatchSize = defaultS3BatchSize
	}
	if cfg.CostServiceNames == nil {
		cfg.CostServiceNames = map[string]string{}
	}
	for k, v := range defaultCostServiceNames {
		if _, ok := cfg.CostServiceNames[k]; !ok {
			cfg.CostServiceNames[k] = v
		}
	}
}

// Env returns the flag defaults read from the environment.
func Env() EnvDefaults {
	return EnvDefaults{
		ConfigPath: getEnvOrDefault("TEARDOWN_CONFIG", defaultConfigPath),
		Region:     getEnvOrDefault("AWS_REGION", defaultRegion),
		Profile:    os.Getenv("AWS_PROFILE"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
