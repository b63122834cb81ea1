package flag

import (
	"bytes"
	"testing"
	"time"

	"github.com/elC0mpa/aws-teardown/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetParsedFlagsDestroy(t *testing.T) {
	t.Setenv("TEARDOWN_CONFIG", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("LOG_LEVEL", "")

	got, err := NewService(&bytes.Buffer{}).GetParsedFlags([]string{
		"destroy", "--force", "--account-filter", "222222222222,333333333333",
		"--s3-timeout", "300", "--no-terraform-cleanup", "--close-accounts", "--scope", "environment",
	})
	require.NoError(t, err)

	want := model.Flags{
		Command:             model.CommandDestroy,
		Force:               true,
		Scope:               "environment",
		AccountFilter:       []string{"222222222222", "333333333333"},
		Region:              "us-east-1",
		NoTerraformCleanup:  true,
		CloseMemberAccounts: true,
		S3Timeout:           5 * time.Minute,
		ConfigPath:          "teardown.yaml",
		LogLevel:            "info",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestGetParsedFlagsPlanIsDryRun(t *testing.T) {
	got, err := NewService(&bytes.Buffer{}).GetParsedFlags([]string{"plan", "--region", "eu-west-1"})
	require.NoError(t, err)

	assert.Equal(t, model.CommandPlan, got.Command)
	assert.True(t, got.DryRun)
	assert.Equal(t, "eu-west-1", got.Region)
	assert.True(t, got.RegionSet)
}

func TestGetParsedFlagsRejectsUnknownScope(t *testing.T) {
	_, err := NewService(&bytes.Buffer{}).GetParsedFlags([]string{"destroy", "--scope", "galaxy"})
	assert.ErrorIs(t, err, errScope)
}

func TestGetParsedFlagsEnvironmentNeedsEnvironmentScope(t *testing.T) {
	got, err := NewService(&bytes.Buffer{}).GetParsedFlags([]string{"plan", "--scope", "environment", "--environment", "dev"})
	require.NoError(t, err)
	assert.Equal(t, "dev", got.Environment)

	_, err = NewService(&bytes.Buffer{}).GetParsedFlags([]string{"plan", "--environment", "dev"})
	assert.ErrorIs(t, err, errScope)
}

func TestGetParsedFlagsS3TimeoutIsSeconds(t *testing.T) {
	got, err := NewService(&bytes.Buffer{}).GetParsedFlags([]string{"plan", "--s3-timeout", "300"})
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, got.S3Timeout)

	_, err = NewService(&bytes.Buffer{}).GetParsedFlags([]string{"destroy", "--s3-timeout", "5m"})
	assert.Error(t, err, "durations with units are not accepted")

	_, err = NewService(&bytes.Buffer{}).GetParsedFlags([]string{"destroy", "--s3-timeout", "-5"})
	assert.Error(t, err)
}

func TestGetParsedFlagsHelp(t *testing.T) {
	var out bytes.Buffer
	got, err := NewService(&out).GetParsedFlags([]string{"--help"})

	require.NoError(t, err)
	assert.Empty(t, got.Command)
	assert.Contains(t, out.String(), "destroy")
}

func TestGetParsedFlagsUnknownCommand(t *testing.T) {
	_, err := NewService(&bytes.Buffer{}).GetParsedFlags([]string{"explode"})
	assert.Error(t, err)
}
