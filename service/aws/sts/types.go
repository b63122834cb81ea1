package awssts

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

// STSAPI is the part of the STS client the identity manager uses.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// SessionConfig controls how cross-account sessions are requested.
type SessionConfig struct {
	Project             string
	RoleName            string
	ExternalID          string
	RunID               string
	Duration            time.Duration
	CrossAccountEnabled bool
}

type service struct {
	base     aws.Config
	client   STSAPI
	sessions SessionConfig
	retry    retry.Policy

	mu          sync.Mutex
	baseAccount string
	live        *assumedSession
}

// assumedSession is owned by the identity manager. Handles only read its
// credentials through the closure installed in their config.
type assumedSession struct {
	accountID   string
	roleARN     string
	sessionName string
	externalID  string
	expiry      time.Time

	mu     sync.RWMutex
	creds  aws.Credentials
	inner  aws.CredentialsProvider
	closed bool
}

type Option func(*service)

// WithRetryPolicy replaces the policy AssumeRole is retried with.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *service) { s.retry = p }
}

type handle struct {
	accountID string
	cfg       aws.Config
}

type STSService interface {
	core.SessionManager
	GetCallerIdentity(ctx context.Context) (*sts.GetCallerIdentityOutput, error)
	Assume(ctx context.Context, target model.Target) (core.ClientHandle, error)
	Restore(ctx context.Context)
}
