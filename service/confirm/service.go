// Package confirm asks the operator to type the destroy phrase before a
// destructive run.
package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/charmbracelet/lipgloss"
	"github.com/elC0mpa/aws-teardown/model"
)

// ErrDeclined is returned when the typed phrase does not match.
var ErrDeclined = errors.New("confirmation declined")

var warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F"))

func NewService(in io.Reader, out io.Writer) *service {
	return &service{in: in, out: out}
}

// Phrase is the exact text an operator must type to confirm.
func Phrase(project string) string {
	return "destroy " + project
}

// Confirm returns nil when no confirmation is needed (dry run or --force)
// or when the operator typed the phrase. Anything else, including end of
// input, is a decline.
func (s *service) Confirm(ctx context.Context, project string, plan Plan, exec model.ExecutionContext) error {
	if exec.DryRun || exec.Force {
		return nil
	}

	phrase := Phrase(project)
	fmt.Fprintln(s.out, warnStyle.Render(fmt.Sprintf("About to destroy %d resource(s) of %q.", plan.Matched, project)))
	fmt.Fprintf(s.out, "Accounts: %s\nRegions:  %s\nServices: %s\n",
		strings.Join(plan.Accounts, ", "), strings.Join(plan.Regions, ", "), strings.Join(plan.Services, ", "))
	fmt.Fprintf(s.out, "Type %q to continue: ", phrase)

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(s.in).ReadString('\n')
		answer <- strings.TrimSpace(line)
	}()

	select {
	case <-ctx.Done():
		s.unblock()
		fmt.Fprintln(s.out)
		return fmt.Errorf("%w: %w", ErrDeclined, ctx.Err())
	case got := <-answer:
		if got != phrase {
			clog.WarnContext(ctx, "confirmation phrase did not match", "expected", phrase)
			return ErrDeclined
		}
		clog.InfoContext(ctx, "destruction confirmed", "project", project)
		return nil
	}
}

// unblock ends the pending read when the input supports deadlines. Other
// readers keep the reading goroutine parked until the process exits; Confirm
// runs once per process so at most one is left behind.
func (s *service) unblock() {
	if d, ok := s.in.(deadliner); ok {
		_ = d.SetReadDeadline(time.Now())
	}
}
