package awserr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/elC0mpa/aws-teardown/model"
	"github.com/stretchr/testify/assert"
)

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{name: "nil", err: nil, kind: ""},
		{name: "throttling", err: apiErr("Throttling"), kind: "throttling"},
		{name: "request limit", err: apiErr("RequestLimitExceeded"), kind: "throttling"},
		{name: "s3 slow down", err: apiErr("SlowDown"), kind: "throttling"},
		{name: "no such bucket", err: apiErr("NoSuchBucket"), kind: "not_found"},
		{name: "iam no such entity", err: apiErr("NoSuchEntity"), kind: "not_found"},
		{name: "ec2 dotted not found", err: apiErr("InvalidGroup.NotFound"), kind: "not_found"},
		{name: "distribution not disabled", err: apiErr("DistributionNotDisabled"), kind: "dependency_not_ready"},
		{name: "bucket not empty", err: apiErr("BucketNotEmpty"), kind: "dependency_not_ready"},
		{name: "access denied", err: apiErr("AccessDenied"), kind: "authorization"},
		{name: "expired token", err: apiErr("ExpiredToken"), kind: "credentials"},
		{name: "deadline", err: fmt.Errorf("emptying: %w", context.DeadlineExceeded), kind: "timeout"},
		{name: "plain", err: errors.New("boom"), kind: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Kind(tt.err))
		})
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	respErr := func(status int) error {
		return &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("upstream"),
		}
	}

	assert.True(t, IsRetryable(respErr(http.StatusServiceUnavailable)))
	assert.True(t, IsRetryable(respErr(http.StatusTooManyRequests)))
	assert.True(t, IsNotFound(respErr(http.StatusNotFound)))
	assert.False(t, IsRetryable(respErr(http.StatusBadRequest)))
}

func TestClassifyKeepsTypedErrors(t *testing.T) {
	authErr := &AuthorizationError{AccountID: "927588814642", RoleARN: "arn:aws:iam::927588814642:role/x", Err: apiErr("AccessDenied")}

	assert.Same(t, authErr, Classify(authErr))
	assert.Contains(t, authErr.Error(), "927588814642")
}

func TestValidationFailureNamesStragglers(t *testing.T) {
	err := &ValidationFailure{Stragglers: []string{"s3:acme-logs", "sns:acme-alerts"}}
	assert.Equal(t, "2 resource(s) remain after destruction: s3:acme-logs, sns:acme-alerts", err.Error())
}

func TestOutcome(t *testing.T) {
	r := model.ResourceDescriptor{ServiceType: "s3", Identifier: "acme-logs"}

	tests := []struct {
		name   string
		err    error
		status model.Status
		kind   string
	}{
		{name: "success", err: nil, status: model.StatusDestroyed},
		{name: "already gone", err: apiErr("NoSuchBucket"), status: model.StatusSkipped},
		{name: "not ready", err: apiErr("DistributionNotDisabled"), status: model.StatusDeferred, kind: "dependency_not_ready"},
		{name: "timeout", err: context.DeadlineExceeded, status: model.StatusDeferred, kind: "timeout"},
		{name: "resource denied", err: apiErr("AccessDenied"), status: model.StatusFailed, kind: "authorization"},
		{name: "unknown", err: errors.New("boom"), status: model.StatusFailed, kind: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Outcome(r, tt.err)
			assert.Equal(t, tt.status, o.Status)
			assert.Equal(t, tt.kind, o.ErrorKind)
			assert.Equal(t, r, o.Resource)
			assert.False(t, o.At.IsZero())
		})
	}
}
