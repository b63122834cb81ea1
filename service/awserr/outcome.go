package awserr

import (
	"time"

	"github.com/elC0mpa/aws-teardown/model"
)

// Outcome turns the result of a destroy attempt into the resource's outcome.
// A resource that is already gone is skipped, one that is waiting on a
// dependency or ran out of time is deferred, anything else is a failure.
func Outcome(r model.ResourceDescriptor, err error) model.DestructionOutcome {
	o := model.DestructionOutcome{Resource: r, At: time.Now().UTC()}

	err = Classify(err)
	switch {
	case err == nil:
		o.Status = model.StatusDestroyed
		return o
	case IsNotFound(err):
		o.Status = model.StatusSkipped
		o.Detail = "already deleted"
		return o
	case IsDependencyNotReady(err), IsTimeout(err):
		o.Status = model.StatusDeferred
	default:
		o.Status = model.StatusFailed
	}

	o.ErrorKind = Kind(err)
	o.Error = err.Error()
	return o
}

// Skipped is the outcome for a resource the engine decided not to touch.
func Skipped(r model.ResourceDescriptor, detail string) model.DestructionOutcome {
	return model.DestructionOutcome{Resource: r, Status: model.StatusSkipped, Detail: detail, At: time.Now().UTC()}
}
