package confirm

import (
	"context"
	"io"
	"time"

	"github.com/elC0mpa/aws-teardown/model"
)

type service struct {
	in  io.Reader
	out io.Writer
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

type ConfirmService interface {
	Confirm(ctx context.Context, project string, plan Plan, exec model.ExecutionContext) error
}

// Plan is what the operator is shown before typing the phrase.
type Plan struct {
	Accounts []string
	Regions  []string
	// Services are the resource classes that would be destroyed.
	Services []string
	Matched  int
}
