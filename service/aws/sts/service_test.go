package awssts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/aws/smithy-go"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSTS struct {
	assumeInputs []*sts.AssumeRoleInput
	assumeFn     func(*sts.AssumeRoleInput) (*sts.AssumeRoleOutput, error)
	identityErr  error
}

func (m *mockSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.identityErr != nil {
		return nil, m.identityErr
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("111111111111"),
		Arn:     aws.String("arn:aws:iam::111111111111:user/ops"),
	}, nil
}

func (m *mockSTS) AssumeRole(_ context.Context, in *sts.AssumeRoleInput, _ ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	m.assumeInputs = append(m.assumeInputs, in)
	if m.assumeFn != nil {
		return m.assumeFn(in)
	}
	return &sts.AssumeRoleOutput{Credentials: &ststypes.Credentials{
		AccessKeyId:     aws.String("ASIA" + aws.ToString(in.RoleArn)[13:25]),
		SecretAccessKey: aws.String("secret"),
		SessionToken:    aws.String("token"),
		Expiration:      aws.Time(time.Now().Add(time.Hour)),
	}}, nil
}

func newTestService(t *testing.T, m *mockSTS) *service {
	t.Helper()
	base := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIABASE", "base-secret", ""),
	}
	s := NewServiceWithClient(base, m, SessionConfig{
		Project:             "Acme Web",
		RoleName:            "AcmeTeardownRole",
		RunID:               "0f8fad5b-d9cb-469f-a165-70867728950e",
		Duration:            time.Hour,
		CrossAccountEnabled: true,
	}, WithRetryPolicy(retry.Policy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}))
	_, err := s.GetAccountInfo(context.Background())
	require.NoError(t, err)
	return s
}

func TestAssumeRoleRequest(t *testing.T) {
	m := &mockSTS{}
	s := newTestService(t, m)

	h, err := s.Assume(context.Background(), model.Target{AccountID: "222222222222"})
	require.NoError(t, err)
	defer s.Restore(context.Background())

	require.Len(t, m.assumeInputs, 1)
	in := m.assumeInputs[0]
	assert.Equal(t, "arn:aws:iam::222222222222:role/AcmeTeardownRole", aws.ToString(in.RoleArn))
	assert.Equal(t, "acme-web-teardown-0f8fad5b", aws.ToString(in.RoleSessionName))
	assert.Equal(t, "Acme Web-222222222222", aws.ToString(in.ExternalId))
	assert.Equal(t, int32(3600), aws.ToInt32(in.DurationSeconds))

	creds, err := h.Config("eu-west-1").Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token", creds.SessionToken)
	assert.Equal(t, "eu-west-1", h.Config("eu-west-1").Region)
	assert.Equal(t, "222222222222", h.AccountID())
}

func TestBaseAccountUsesBaseCredentials(t *testing.T) {
	m := &mockSTS{}
	s := newTestService(t, m)

	h, err := s.Assume(context.Background(), model.Target{AccountID: "111111111111"})
	require.NoError(t, err)
	defer s.Restore(context.Background())

	assert.Empty(t, m.assumeInputs)
	creds, err := h.Config("").Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIABASE", creds.AccessKeyID)
}

func TestNoSessionLeakage(t *testing.T) {
	s := newTestService(t, &mockSTS{})
	ctx := context.Background()

	var first core.ClientHandle
	err := s.WithSession(ctx, model.Target{AccountID: "222222222222"}, func(h core.ClientHandle) error {
		first = h
		return nil
	})
	require.NoError(t, err)

	_, err = first.Config("us-east-1").Credentials.Retrieve(ctx)
	assert.ErrorIs(t, err, errSessionClosed, "a restored handle must not keep working")

	err = s.WithSession(ctx, model.Target{AccountID: "333333333333"}, func(h core.ClientHandle) error {
		creds, err := h.Config("us-east-1").Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "333333333333", h.AccountID())
		assert.NotEqual(t, "", creds.AccessKeyID)
		return nil
	})
	require.NoError(t, err)
}

func TestOnlyOneLiveSession(t *testing.T) {
	s := newTestService(t, &mockSTS{})
	ctx := context.Background()

	_, err := s.Assume(ctx, model.Target{AccountID: "222222222222"})
	require.NoError(t, err)

	_, err = s.Assume(ctx, model.Target{AccountID: "333333333333"})
	assert.ErrorIs(t, err, errSessionActive)

	s.Restore(ctx)
	_, err = s.Assume(ctx, model.Target{AccountID: "333333333333"})
	assert.NoError(t, err)
	s.Restore(ctx)
}

func TestWithSessionRestoresOnError(t *testing.T) {
	s := newTestService(t, &mockSTS{})
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithSession(ctx, model.Target{AccountID: "222222222222"}, func(core.ClientHandle) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = s.Assume(ctx, model.Target{AccountID: "333333333333"})
	assert.NoError(t, err, "session must have been restored after fn failed")
	s.Restore(ctx)
}

func TestAssumeDenied(t *testing.T) {
	m := &mockSTS{assumeFn: func(*sts.AssumeRoleInput) (*sts.AssumeRoleOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized to perform sts:AssumeRole"}
	}}
	s := newTestService(t, m)

	_, err := s.Assume(context.Background(), model.Target{AccountID: "927588814642"})

	var authErr *awserr.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "927588814642", authErr.AccountID)
	assert.Equal(t, "arn:aws:iam::927588814642:role/AcmeTeardownRole", authErr.RoleARN)

	_, err = s.Assume(context.Background(), model.Target{AccountID: "222222222222"})
	assert.NotErrorIs(t, err, errSessionActive, "a failed assume must not hold the session slot")
}

func TestAssumeRetriesThrottling(t *testing.T) {
	calls := 0
	m := &mockSTS{assumeFn: func(in *sts.AssumeRoleInput) (*sts.AssumeRoleOutput, error) {
		calls++
		if calls < 3 {
			return nil, &smithy.GenericAPIError{Code: "Throttling", Message: "rate exceeded"}
		}
		return &sts.AssumeRoleOutput{Credentials: &ststypes.Credentials{
			AccessKeyId:     aws.String("ASIA"),
			SecretAccessKey: aws.String("secret"),
			SessionToken:    aws.String("token"),
		}}, nil
	}}
	s := newTestService(t, m)

	h, err := s.Assume(context.Background(), model.Target{AccountID: "222222222222"})
	require.NoError(t, err)
	defer s.Restore(context.Background())

	assert.Equal(t, 3, calls)
	assert.Equal(t, "222222222222", h.AccountID())
}

func TestAssumeThrottledIsNotADenial(t *testing.T) {
	m := &mockSTS{assumeFn: func(*sts.AssumeRoleInput) (*sts.AssumeRoleOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "Throttling", Message: "rate exceeded"}
	}}
	s := newTestService(t, m)

	_, err := s.Assume(context.Background(), model.Target{AccountID: "222222222222"})

	require.Error(t, err)
	assert.False(t, awserr.IsAuthorization(err))
	assert.True(t, awserr.IsRetryable(err))
	assert.Len(t, m.assumeInputs, 3)
}

func TestAssumeWithExpiredBaseCredentials(t *testing.T) {
	m := &mockSTS{assumeFn: func(*sts.AssumeRoleInput) (*sts.AssumeRoleOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "ExpiredToken", Message: "expired"}
	}}
	s := newTestService(t, m)

	_, err := s.Assume(context.Background(), model.Target{AccountID: "222222222222"})
	assert.True(t, awserr.IsCredentials(err))
}

func TestCrossAccountDisabled(t *testing.T) {
	m := &mockSTS{}
	s := newTestService(t, m)
	s.sessions.CrossAccountEnabled = false

	_, err := s.Assume(context.Background(), model.Target{AccountID: "222222222222"})
	assert.ErrorIs(t, err, errCrossAccountOff)
	assert.Empty(t, m.assumeInputs)
}

func TestGetAccountInfoFailureIsCredentialsError(t *testing.T) {
	s := NewServiceWithClient(aws.Config{}, &mockSTS{identityErr: errors.New("no credentials")}, SessionConfig{})

	_, err := s.GetAccountInfo(context.Background())
	assert.True(t, awserr.IsCredentials(err))
}
