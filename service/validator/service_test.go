package validator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/aws/awstest"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/lazydelete"
	"github.com/elC0mpa/aws-teardown/service/matcher"
	"github.com/elC0mpa/aws-teardown/service/phase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanner struct {
	name      string
	global    bool
	resources map[string][]string
	calls     []string
	destroyed int
}

func (s *scanner) Name() string { return s.name }

func (s *scanner) Global() bool { return s.global }

func (s *scanner) Enumerate(_ context.Context, h core.ClientHandle, t model.Target) ([]model.ResourceDescriptor, error) {
	s.calls = append(s.calls, h.AccountID()+"/"+t.Region)
	var out []model.ResourceDescriptor
	for _, n := range s.resources[h.AccountID()+"/"+t.Region] {
		out = append(out, model.ResourceDescriptor{ServiceType: s.name, Identifier: n, Name: n, AccountID: h.AccountID(), Region: t.Region})
	}
	return out, nil
}

func (s *scanner) Destroy(_ context.Context, _ core.ClientHandle, r model.ResourceDescriptor, _ model.ExecutionContext) model.DestructionOutcome {
	s.destroyed++
	return awserr.Outcome(r, nil)
}

type sessions struct{ denied string }

func (s sessions) GetAccountInfo(context.Context) (*model.AccountInfo, error) {
	return &model.AccountInfo{}, nil
}

func (s sessions) WithSession(_ context.Context, t model.Target, fn func(core.ClientHandle) error) error {
	if t.AccountID == s.denied {
		return &awserr.AuthorizationError{AccountID: t.AccountID, Err: errors.New("AccessDenied")}
	}
	return fn(awstest.Handle{Account: t.AccountID})
}

var patterns = matcher.Patterns{Prefixes: []string{"acme"}}

func TestValidateScansValidationRegionsAndNamesStragglers(t *testing.T) {
	buckets := &scanner{name: "s3", global: true, resources: map[string][]string{"111111111111/us-east-1": {"acme-logs", "other"}}}
	keys := &scanner{name: "kms", resources: map[string][]string{"111111111111/eu-west-1": {"acme-key"}}}
	reg := phase.NewRegistry(buckets, keys)

	v := NewService(sessions{}, reg, patterns, WithRegions("eu-west-1")).
		Validate(context.Background(), []model.Target{{AccountID: "111111111111", Region: "us-east-1"}}, model.ExecutionContext{})

	assert.False(t, v.Clean)
	require.Len(t, v.Stragglers, 2)
	assert.Equal(t, "acme-logs", v.Stragglers[0].Identifier)
	assert.Equal(t, "acme-key", v.Stragglers[1].Identifier)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, v.RegionsScanned)
	assert.Equal(t, []string{"111111111111/us-east-1"}, buckets.calls)
	assert.Equal(t, []string{"111111111111/us-east-1", "111111111111/eu-west-1"}, keys.calls)
	assert.Contains(t, v.Recommendation, "re-run destroy")
	assert.Zero(t, buckets.destroyed+keys.destroyed)
}

func TestValidateClean(t *testing.T) {
	reg := phase.NewRegistry(&scanner{name: "s3", global: true})

	v := NewService(sessions{}, reg, patterns).
		Validate(context.Background(), []model.Target{{AccountID: "111111111111", Region: "us-east-1"}}, model.ExecutionContext{})

	assert.True(t, v.Clean)
	assert.Empty(t, v.Recommendation)
	assert.Equal(t, []string{"111111111111"}, v.Accounts)
}

func TestValidateDeniedAccountIsAScanError(t *testing.T) {
	reg := phase.NewRegistry(&scanner{name: "s3", global: true})
	ts := []model.Target{{AccountID: "111111111111", Region: "us-east-1"}, {AccountID: "927588814642", Region: "us-east-1"}}

	v := NewService(sessions{denied: "927588814642"}, reg, patterns).Validate(context.Background(), ts, model.ExecutionContext{})

	assert.False(t, v.Clean)
	require.Len(t, v.ScanErrors, 1)
	assert.Contains(t, v.ScanErrors[0], "927588814642")
	assert.Contains(t, v.Recommendation, "could not be scanned")
}

func TestValidateCountsPendingLazyDeletes(t *testing.T) {
	ctx := context.Background()
	store := lazydelete.NewFile(filepath.Join(t.TempDir(), "lazy.json"))
	require.NoError(t, store.Upsert(ctx, model.LazyDeleteEntry{
		ID: "s3:111111111111:acme-huge", ServiceType: "s3", ResourceID: "acme-huge", AccountID: "111111111111", Status: model.LazyDeletePending,
	}))
	reg := phase.NewRegistry(&scanner{name: "s3", global: true, resources: map[string][]string{"111111111111/us-east-1": {"acme-huge"}}})

	v := NewService(sessions{}, reg, patterns, WithLazyDeletes(store)).
		Validate(ctx, []model.Target{{AccountID: "111111111111", Region: "us-east-1"}}, model.ExecutionContext{})

	assert.Contains(t, v.Recommendation, "1 pending lazy deletion")
}
