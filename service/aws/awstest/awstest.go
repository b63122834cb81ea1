// Package awstest holds the fakes shared by the destroyer tests.
package awstest

import (
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

// Handle is a client handle that hands out an empty config for any region.
type Handle struct{ Account string }

func (h Handle) AccountID() string { return h.Account }

func (h Handle) Config(region string) aws.Config { return aws.Config{Region: region} }

// Retry keeps retries fast enough for unit tests.
var Retry = retry.Policy{MaxTries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

// Recorder keeps the ordered list of calls a fake client received.
type Recorder struct {
	mu  sync.Mutex
	ops []string
}

// Record stores op, optionally qualified with the resource it touched.
func (r *Recorder) Record(op string, target ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(target) > 0 {
		op += ":" + strings.Join(target, ",")
	}
	r.ops = append(r.ops, op)
}

func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// Index returns the position of the first recorded op equal to op, or -1.
func (r *Recorder) Index(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.ops {
		if o == op {
			return i
		}
	}
	return -1
}

// APIError builds the error shape the SDK returns for service faults.
func APIError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}
