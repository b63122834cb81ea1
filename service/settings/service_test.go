package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/elC0mpa/aws-teardown/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
project: acme
management_account_id: "111111111111"
cross_account_role_name: AcmeTeardownRole
session_duration: 30m
accounts:
  - id: "222222222222"
    environment: dev
  - id: "927588814642"
    environment: prod
regions: [us-east-1, eu-west-1]
ownership:
  fragments: [acme]
  state_backend: [acme-terraform-state]
  tags:
    - key: Project
      value: acme
preserve:
  environment:
    names: [acme-shared-dns]
timeouts:
  s3_empty: 10m
`

func TestParse(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	cfg, err := NewService().Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Project)
	assert.Equal(t, 30*time.Minute, cfg.SessionDuration)
	assert.Equal(t, SupportedRegions, cfg.ValidationRegions)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.S3Empty)
	assert.Equal(t, defaultOperationTimout, cfg.Timeouts.Operation)
	assert.Equal(t, filepath.Join(defaultOutputDir, defaultTrackingFile), cfg.Output.TrackingFile)
	assert.Equal(t, 4, cfg.Workers.S3Workers)
	assert.Equal(t, "prod", cfg.AccountEnvironment("927588814642"))
	assert.Equal(t, "management", cfg.AccountEnvironment("111111111111"))
	assert.Equal(t, []string{"acme-shared-dns"}, cfg.Preserve[model.ScopeEnvironment].Names)
	assert.Equal(t, "Amazon Simple Storage Service", cfg.CostServiceNames["s3"])
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing project", yaml: "ownership: {fragments: [acme]}\n"},
		{name: "bad account id", yaml: "project: acme\nownership: {fragments: [acme]}\naccounts: [{id: '12', environment: dev}]\n"},
		{name: "bad environment", yaml: "project: acme\nownership: {fragments: [acme]}\naccounts: [{id: '222222222222', environment: qa}]\n"},
		{name: "short fragment", yaml: "project: acme\nownership: {fragments: [ab]}\n"},
		{name: "no ownership", yaml: "project: acme\n"},
		{name: "unknown scope", yaml: "project: acme\nownership: {fragments: [acme]}\npreserve: {galaxy: {names: [x]}}\n"},
		{name: "session too long", yaml: "project: acme\nownership: {fragments: [acme]}\nsession_duration: 24h\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService().Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errValidate), err.Error())
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := NewService().Parse([]byte("project: [unterminated"))
	assert.ErrorIs(t, err, errParse)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teardown.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := NewService().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "AcmeTeardownRole", cfg.CrossAccountRoleName)

	_, err = NewService().Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, errRead)
}

func TestValidationRegionsCoverConfiguredOptInRegions(t *testing.T) {
	cfg, err := NewService().Parse([]byte("project: acme\nownership: {fragments: [acme]}\nregions: [us-east-1, me-south-1]\n"))
	require.NoError(t, err)

	assert.Subset(t, cfg.ValidationRegions, SupportedRegions)
	assert.Contains(t, cfg.ValidationRegions, "me-south-1")
	assert.Len(t, cfg.ValidationRegions, len(SupportedRegions)+1)
}

func TestExplicitValidationRegionsKept(t *testing.T) {
	cfg, err := NewService().Parse([]byte("project: acme\nownership: {fragments: [acme]}\nvalidation_regions: [eu-west-1]\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"eu-west-1"}, cfg.ValidationRegions)
}

func TestDefaultRegionFromEnv(t *testing.T) {
	t.Setenv("AWS_REGION", "ap-southeast-2")
	cfg, err := NewService().Parse([]byte("project: acme\nownership: {fragments: [acme]}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ap-southeast-2"}, cfg.Regions)
}

func TestEnv(t *testing.T) {
	t.Setenv("TEARDOWN_CONFIG", "/etc/teardown.yaml")
	t.Setenv("AWS_PROFILE", "ops")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("AWS_REGION", "")

	env := Env()
	assert.Equal(t, "/etc/teardown.yaml", env.ConfigPath)
	assert.Equal(t, "ops", env.Profile)
	assert.Equal(t, "info", env.LogLevel)
	assert.Equal(t, "us-east-1", env.Region)
}
