package awssts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
	"github.com/gosimple/slug"
)

var (
	errSessionActive       = errors.New("another assumed session is still active")
	errSessionClosed       = errors.New("session has been restored")
	errCrossAccountOff     = errors.New("cross-account access is disabled")
	errIdentityUnavailable = errors.New("base identity unavailable")
)

// maxSessionNameLength is the STS limit on RoleSessionName.
const maxSessionNameLength = 64

func NewService(awsconfig aws.Config, sessions SessionConfig, opts ...Option) *service {
	return NewServiceWithClient(awsconfig, sts.NewFromConfig(awsconfig), sessions, opts...)
}

func NewServiceWithClient(awsconfig aws.Config, client STSAPI, sessions SessionConfig, opts ...Option) *service {
	s := &service{
		base:     awsconfig,
		client:   client,
		sessions: sessions,
		retry:    retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) GetCallerIdentity(ctx context.Context) (*sts.GetCallerIdentityOutput, error) {
	input := &sts.GetCallerIdentityInput{}

	return s.client.GetCallerIdentity(ctx, input)
}

// GetAccountInfo implements service.IdentityService. A failure here means the
// base credentials are unusable.
func (s *service) GetAccountInfo(ctx context.Context) (*model.AccountInfo, error) {
	output, err := s.GetCallerIdentity(ctx)
	if err != nil {
		return nil, &awserr.CredentialsError{Err: fmt.Errorf("%w: %w", errIdentityUnavailable, err)}
	}

	s.mu.Lock()
	s.baseAccount = aws.ToString(output.Account)
	s.mu.Unlock()

	return &model.AccountInfo{
		Provider:    "aws",
		AccountID:   aws.ToString(output.Account),
		AccountName: aws.ToString(output.Arn),
	}, nil
}

// Assume opens the session for target. The base account is served with the
// base credentials; every other account goes through AssumeRole. Only one
// session may be open at a time.
func (s *service) Assume(ctx context.Context, target model.Target) (core.ClientHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live != nil {
		return nil, fmt.Errorf("%w: %s", errSessionActive, s.live.accountID)
	}

	if s.baseAccount != "" && target.AccountID == s.baseAccount {
		sess := &assumedSession{accountID: target.AccountID, inner: s.base.Credentials}
		s.live = sess
		return s.newHandle(sess), nil
	}

	if !s.sessions.CrossAccountEnabled {
		return nil, &awserr.AuthorizationError{AccountID: target.AccountID, Err: errCrossAccountOff}
	}

	roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", target.AccountID, s.sessions.RoleName)
	sessionName := s.sessionName()
	externalID := s.externalID(target.AccountID)

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
		ExternalId:      aws.String(externalID),
	}
	if s.sessions.Duration > 0 {
		input.DurationSeconds = aws.Int32(int32(s.sessions.Duration.Seconds()))
	}

	// Throttling is retried. Only a refusal marks the account as denied;
	// any other failure is returned as is so the caller can try again later.
	output, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*sts.AssumeRoleOutput, error) {
		return s.client.AssumeRole(ctx, input)
	})
	switch {
	case err == nil:
	case awserr.IsCredentials(err):
		return nil, err
	case awserr.IsAuthorization(err):
		return nil, &awserr.AuthorizationError{AccountID: target.AccountID, RoleARN: roleARN, Err: err}
	default:
		return nil, fmt.Errorf("assuming %s: %w", roleARN, err)
	}
	if output.Credentials == nil {
		return nil, &awserr.AuthorizationError{AccountID: target.AccountID, RoleARN: roleARN, Err: errors.New("AssumeRole returned no credentials")}
	}

	sess := &assumedSession{
		accountID:   target.AccountID,
		roleARN:     roleARN,
		sessionName: sessionName,
		externalID:  externalID,
		expiry:      aws.ToTime(output.Credentials.Expiration),
		creds: aws.Credentials{
			AccessKeyID:     aws.ToString(output.Credentials.AccessKeyId),
			SecretAccessKey: aws.ToString(output.Credentials.SecretAccessKey),
			SessionToken:    aws.ToString(output.Credentials.SessionToken),
			Source:          "teardown-assume-role",
			CanExpire:       output.Credentials.Expiration != nil,
			Expires:         aws.ToTime(output.Credentials.Expiration),
		},
	}
	s.live = sess

	clog.DebugContext(ctx, "assumed role", "account", target.AccountID, "role", roleARN, "session", sessionName, "expires", sess.expiry)

	return s.newHandle(sess), nil
}

// Restore closes the live session. Handles issued for it stop producing
// credentials. Calling Restore without a live session is a no-op.
func (s *service) Restore(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live == nil {
		return
	}

	s.live.mu.Lock()
	s.live.closed = true
	s.live.creds = aws.Credentials{}
	s.live.mu.Unlock()

	clog.DebugContext(ctx, "restored base identity", "account", s.live.accountID)
	s.live = nil
}

// WithSession runs fn inside a session for target and restores the base
// identity on every exit path.
func (s *service) WithSession(ctx context.Context, target model.Target, fn func(core.ClientHandle) error) error {
	h, err := s.Assume(ctx, target)
	if err != nil {
		return err
	}
	defer s.Restore(ctx)

	return fn(h)
}

func (s *service) newHandle(sess *assumedSession) *handle {
	cfg := s.base.Copy()
	cfg.Credentials = aws.CredentialsProviderFunc(sess.retrieve)
	return &handle{accountID: sess.accountID, cfg: cfg}
}

func (s *service) sessionName() string {
	runID := s.sessions.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	name := slug.Make(s.sessions.Project) + "-teardown-" + runID
	if len(name) > maxSessionNameLength {
		name = name[:maxSessionNameLength]
	}
	return strings.Trim(name, "-")
}

func (s *service) externalID(accountID string) string {
	if s.sessions.ExternalID != "" {
		return s.sessions.ExternalID
	}
	return s.sessions.Project + "-" + accountID
}

func (a *assumedSession) retrieve(ctx context.Context) (aws.Credentials, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return aws.Credentials{}, fmt.Errorf("%w: account %s", errSessionClosed, a.accountID)
	}
	if a.inner != nil {
		return a.inner.Retrieve(ctx)
	}
	return a.creds, nil
}

func (h *handle) AccountID() string { return h.accountID }

// Config returns a copy of the session config pinned to region.
func (h *handle) Config(region string) aws.Config {
	cfg := h.cfg.Copy()
	if region != "" {
		cfg.Region = region
	}
	return cfg
}
