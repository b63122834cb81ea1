// Package awserr classifies AWS SDK errors into the small set of failure
// kinds the engine reacts to.
package awserr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// AuthorizationError means a role could not be assumed or a call was denied.
type AuthorizationError struct {
	AccountID string
	RoleARN   string
	Err       error
}

func (e *AuthorizationError) Error() string {
	if e.RoleARN != "" {
		return fmt.Sprintf("authorization failed for account %s (role %s): %v", e.AccountID, e.RoleARN, e.Err)
	}
	return fmt.Sprintf("authorization failed: %v", e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// CredentialsError means the base credentials themselves are unusable.
type CredentialsError struct {
	Err error
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("base credentials unusable: %v", e.Err)
}

func (e *CredentialsError) Unwrap() error { return e.Err }

// ThrottlingError is a rate limit or server-side failure worth retrying.
type ThrottlingError struct {
	Code string
	Err  error
}

func (e *ThrottlingError) Error() string {
	return fmt.Sprintf("throttled (%s): %v", e.Code, e.Err)
}

func (e *ThrottlingError) Unwrap() error { return e.Err }

// DependencyNotReadyError means the resource exists but cannot be deleted yet.
type DependencyNotReadyError struct {
	Resource string
	Reason   string
	Err      error
}

func (e *DependencyNotReadyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s not ready for deletion: %s: %v", e.Resource, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s not ready for deletion: %s", e.Resource, e.Reason)
}

func (e *DependencyNotReadyError) Unwrap() error { return e.Err }

// NotFoundError means the resource is already gone.
type NotFoundError struct {
	Resource string
	Err      error
}

func (e *NotFoundError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s not found: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("not found: %v", e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// TimeoutError means an operation ran out of time after partial progress.
type TimeoutError struct {
	Resource string
	After    time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("%s timed out after %s: %v", e.Resource, e.After, e.Err)
	}
	return fmt.Sprintf("%s timed out: %v", e.Resource, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ValidationFailure lists resources still present after a run.
type ValidationFailure struct {
	Stragglers []string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("%d resource(s) remain after destruction: %s", len(e.Stragglers), strings.Join(e.Stragglers, ", "))
}

var (
	notFoundCodes = map[string]bool{
		"NotFound":                          true,
		"NotFoundException":                 true,
		"ResourceNotFoundException":         true,
		"ResourceNotFound":                  true,
		"NoSuchEntity":                      true,
		"ParameterNotFound":                 true,
		"TrailNotFoundException":            true,
		"DBInstanceNotFound":                true,
		"DBInstanceNotFoundFault":           true,
		"DBClusterNotFoundFault":            true,
		"WAFNonexistentItemException":       true,
		"InvalidAllocationID.NotFound":      true,
		"InvalidVolume.NotFound":            true,
		"LoadBalancerNotFound":              true,
		"PolicyNotFoundException":           true,
		"AccountNotFoundException":          true,
		"TargetNotFoundException":           true,
		"AWSOrganizationsNotInUseException": true,
	}
	throttlingCodes = map[string]bool{
		"Throttling":                             true,
		"ThrottlingException":                    true,
		"ThrottledException":                     true,
		"RequestThrottled":                       true,
		"RequestThrottledException":              true,
		"TooManyRequestsException":               true,
		"RequestLimitExceeded":                   true,
		"SlowDown":                               true,
		"PriorRequestNotComplete":                true,
		"ProvisionedThroughputExceededException": true,
		"LimitExceededException":                 true,
		"InternalError":                          true,
		"InternalFailure":                        true,
		"ServiceUnavailable":                     true,
	}
	authorizationCodes = map[string]bool{
		"AccessDenied":          true,
		"AccessDeniedException": true,
		"UnauthorizedOperation": true,
		"AuthFailure":           true,
		"Forbidden":             true,
	}
	credentialsCodes = map[string]bool{
		"InvalidClientTokenId":        true,
		"ExpiredToken":                true,
		"ExpiredTokenException":       true,
		"UnrecognizedClientException": true,
		"SignatureDoesNotMatch":       true,
		"InvalidAccessKeyId":          true,
	}
	notReadyCodes = map[string]bool{
		"DistributionNotDisabled":         true,
		"InvalidDBInstanceState":          true,
		"InvalidDBInstanceStateFault":     true,
		"InvalidDBClusterStateFault":      true,
		"DeleteConflict":                  true,
		"BucketNotEmpty":                  true,
		"DependencyViolation":             true,
		"ResourceInUseException":          true,
		"WAFAssociatedItemException":      true,
		"WAFOptimisticLockException":      true,
		"HostedZoneNotEmpty":              true,
		"PreconditionFailed":              true,
		"OperationAborted":                true,
		"ConcurrentModificationException": true,
		"ConstraintViolationException":    true,
		"InvalidIfMatchVersion":           true,
		"InvalidAddress.Locked":           true,
		"VolumeInUse":                     true,
		"OperationNotPermitted":           true,
	}
)

// Classify maps a raw SDK error onto the typed taxonomy. Errors that already
// carry a type and errors it does not recognise are returned unchanged.
func Classify(err error) error {
	if err == nil || isTyped(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Resource: "operation", Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case credentialsCodes[code]:
			return &CredentialsError{Err: err}
		case authorizationCodes[code]:
			return &AuthorizationError{Err: err}
		case throttlingCodes[code]:
			return &ThrottlingError{Code: code, Err: err}
		case notFoundCodes[code], strings.HasPrefix(code, "NoSuch"), strings.HasSuffix(code, ".NotFound"):
			return &NotFoundError{Err: err}
		case notReadyCodes[code]:
			return &DependencyNotReadyError{Resource: "resource", Reason: code, Err: err}
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		switch {
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			return &ThrottlingError{Code: http.StatusText(status), Err: err}
		case status == http.StatusNotFound:
			return &NotFoundError{Err: err}
		}
	}

	return err
}

func isTyped(err error) bool {
	var (
		authErr     *AuthorizationError
		credErr     *CredentialsError
		throttleErr *ThrottlingError
		notReadyErr *DependencyNotReadyError
		notFoundErr *NotFoundError
		timeoutErr  *TimeoutError
	)
	return errors.As(err, &authErr) || errors.As(err, &credErr) || errors.As(err, &throttleErr) ||
		errors.As(err, &notReadyErr) || errors.As(err, &notFoundErr) || errors.As(err, &timeoutErr)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(Classify(err), &target)
}

func IsRetryable(err error) bool {
	var target *ThrottlingError
	return errors.As(Classify(err), &target)
}

func IsAuthorization(err error) bool {
	var target *AuthorizationError
	return errors.As(Classify(err), &target)
}

func IsCredentials(err error) bool {
	var target *CredentialsError
	return errors.As(Classify(err), &target)
}

func IsDependencyNotReady(err error) bool {
	var target *DependencyNotReadyError
	return errors.As(Classify(err), &target)
}

func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(Classify(err), &target)
}

// Kind names the taxonomy entry for err, for reports.
func Kind(err error) string {
	switch err := Classify(err); {
	case err == nil:
		return ""
	case IsCredentials(err):
		return "credentials"
	case IsAuthorization(err):
		return "authorization"
	case IsNotFound(err):
		return "not_found"
	case IsDependencyNotReady(err):
		return "dependency_not_ready"
	case IsTimeout(err):
		return "timeout"
	case IsRetryable(err):
		return "throttling"
	default:
		return "unknown"
	}
}
