package phase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/lazydelete"
	"github.com/elC0mpa/aws-teardown/service/logging"
	"github.com/elC0mpa/aws-teardown/service/matcher"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

var (
	// ErrAborted is returned when the base credentials stop working. The
	// partial result is still returned alongside it.
	ErrAborted = errors.New("run aborted")

	errCancelled = errors.New("run cancelled")
)

func NewScheduler(sessions core.SessionManager, registry core.Registry, patterns matcher.Patterns, store lazydelete.Store, opts ...Option) *scheduler {
	s := &scheduler{
		sessions: sessions,
		registry: registry,
		patterns: patterns,
		store:    store,
		plan:     Plan,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// account is one account and the regions targeted in it. The first region is
// the home region used for global services.
type account struct {
	id          string
	environment string
	regions     []string
}

type run struct {
	exec     model.ExecutionContext
	accounts []account
	denied   map[string]bool
	result   *Result
	current  *model.PhaseResult
}

// Run walks the plan once. Resource and phase failures are recorded and the
// run continues; only lost base credentials stop it early, in which case the
// error wraps ErrAborted.
func (s *scheduler) Run(ctx context.Context, targets []model.Target, exec model.ExecutionContext) (*Result, error) {
	r := &run{
		exec:     exec,
		accounts: groupTargets(targets, exec),
		denied:   map[string]bool{},
		result:   &Result{},
	}

	for _, p := range s.plan {
		if ctx.Err() != nil {
			r.result.Cancelled = true
			break
		}

		err := s.runPhase(ctx, r, p)
		if errors.Is(err, errCancelled) {
			r.result.Cancelled = true
			break
		}
		if err != nil {
			clog.ErrorContext(ctx, "aborting run", "phase", p.Name, "error", err.Error())
			r.result.Errors = append(r.result.Errors, err.Error())
			return r.result, fmt.Errorf("%w: %w", ErrAborted, err)
		}
	}

	if exec.DryRun || r.result.Cancelled {
		return r.result, nil
	}

	s.validate(ctx, r, targets)
	if err := s.sweep(ctx, r); err != nil {
		r.result.Errors = append(r.result.Errors, err.Error())
		return r.result, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return r.result, nil
}

func (s *scheduler) runPhase(ctx context.Context, r *run, p Phase) error {
	r.current = &model.PhaseResult{Number: p.Number, Name: p.Name, StartedAt: time.Now().UTC()}
	defer func() {
		r.current.FinishedAt = time.Now().UTC()
		r.result.Phases = append(r.result.Phases, *r.current)
		r.current = nil
	}()

	ctx = logging.With(ctx, "phase", p.Number)
	clog.InfoContext(ctx, "starting phase", "name", p.Name)

	if p.ManagementOnly && s.managementAccount == "" {
		clog.InfoContext(ctx, "no management account configured, skipping phase", "name", p.Name)
		return nil
	}

	for _, step := range p.Steps {
		destroyers := make([]core.Destroyer, 0, len(step))
		for _, name := range step {
			d, ok := s.registry.Get(name)
			if !ok {
				s.phaseError(ctx, r, fmt.Errorf("no destroyer registered for %q", name))
				continue
			}
			destroyers = append(destroyers, d)
		}

		for _, acct := range r.accounts {
			if p.ManagementOnly && acct.id != s.managementAccount {
				continue
			}
			if err := s.runAccount(ctx, r, p, acct, destroyers); err != nil {
				return err
			}
		}
	}
	return nil
}

// runAccount runs the destroyers of one step inside a single session for
// acct. Accounts that refused the session once are not asked again.
func (s *scheduler) runAccount(ctx context.Context, r *run, p Phase, acct account, destroyers []core.Destroyer) error {
	if r.denied[acct.id] || len(destroyers) == 0 {
		return nil
	}

	home := model.Target{AccountID: acct.id, Region: acct.regions[0], Environment: acct.environment}
	err := s.sessions.WithSession(ctx, home, func(h core.ClientHandle) error {
		for _, d := range destroyers {
			regions := acct.regions
			if d.Global() {
				regions = regions[:1]
			}
			for _, region := range regions {
				target := model.Target{AccountID: acct.id, Region: region, Environment: acct.environment}
				if err := s.runDestroyer(ctx, r, p, d, h, target); err != nil {
					return err
				}
			}
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errCancelled), awserr.IsCredentials(err):
		return err
	case awserr.IsAuthorization(err):
		r.denied[acct.id] = true
		r.result.SkippedAccounts = append(r.result.SkippedAccounts, model.SkippedAccount{
			AccountID: acct.id,
			Phase:     p.Name,
			ErrorKind: awserr.Kind(err),
			Error:     err.Error(),
		})
		clog.WarnContext(ctx, "skipping account", "account", acct.id, "error", err.Error())
		s.phaseError(ctx, r, fmt.Errorf("account %s skipped: %w", acct.id, err))
		return nil
	default:
		s.phaseError(ctx, r, fmt.Errorf("account %s: %w", acct.id, err))
		return nil
	}
}

func (s *scheduler) runDestroyer(ctx context.Context, r *run, p Phase, d core.Destroyer, h core.ClientHandle, target model.Target) error {
	if ctx.Err() != nil {
		return errCancelled
	}
	ctx = logging.With(ctx, "service", d.Name(), "account", target.AccountID, "region", target.Region)

	descriptors, err := d.Enumerate(retry.WithAttemptTimeout(ctx, r.exec.OperationTimeout), h, target)
	if err != nil {
		if ctx.Err() != nil {
			return errCancelled
		}
		if awserr.IsCredentials(err) {
			return awserr.Classify(err)
		}
		s.phaseError(ctx, r, fmt.Errorf("enumerating %s in %s: %w", d.Name(), target, err))
		return nil
	}

	for _, res := range descriptors {
		m := matcher.Matches(res, s.patterns)
		if !m.Matched {
			clog.DebugContext(ctx, "not matched", "resource", res.Label(), "reason", m.Reason)
			continue
		}

		if r.exec.DryRun {
			clog.InfoContext(ctx, "would destroy", "resource", res.Label(), "reason", m.Reason)
			r.current.Counts.Matched++
			r.result.WouldDestroy = append(r.result.WouldDestroy, res)
			continue
		}

		// A cancel lets the resource in flight finish; the next one is not started.
		if ctx.Err() != nil {
			return errCancelled
		}

		clog.InfoContext(ctx, "destroying", "resource", res.Label(), "reason", m.Reason)
		o := d.Destroy(context.WithoutCancel(ctx), h, res, r.exec)
		o.Phase = p.Name
		s.record(ctx, r, o)

		if o.ErrorKind == "credentials" {
			return &awserr.CredentialsError{Err: errors.New(o.Error)}
		}
	}
	return nil
}

func (s *scheduler) record(ctx context.Context, r *run, o model.DestructionOutcome) {
	r.result.Outcomes = append(r.result.Outcomes, o)
	if r.current != nil {
		r.current.Counts.Add(o)
	}

	switch o.Status {
	case model.StatusFailed:
		clog.WarnContext(ctx, "destroy failed", "resource", o.Resource.Label(), "kind", o.ErrorKind, "error", o.Error)
	case model.StatusDeferred:
		clog.WarnContext(ctx, "destroy deferred", "resource", o.Resource.Label(), "detail", o.Detail, "error", o.Error)
	default:
		clog.InfoContext(ctx, string(o.Status), "resource", o.Resource.Label(), "detail", o.Detail)
	}

	if o.LazyDelete == nil {
		return
	}
	r.result.LazyDeletes = append(r.result.LazyDeletes, *o.LazyDelete)
	if err := s.store.Upsert(ctx, *o.LazyDelete); err != nil {
		clog.ErrorContext(ctx, "failed to record lazy delete", "id", o.LazyDelete.ID, "error", err.Error())
	}
}

func (s *scheduler) phaseError(ctx context.Context, r *run, err error) {
	clog.WarnContext(ctx, "phase error", "error", err.Error())
	if r.current != nil {
		r.current.Errors = append(r.current.Errors, err.Error())
	}
	r.result.Errors = append(r.result.Errors, err.Error())
}

func (s *scheduler) validate(ctx context.Context, r *run, targets []model.Target) {
	if s.validator == nil {
		return
	}
	r.current = &model.PhaseResult{Number: ValidationNumber, Name: ValidationName, StartedAt: time.Now().UTC()}

	var allowed []model.Target
	for _, t := range targets {
		if r.exec.AccountAllowed(t.AccountID) {
			allowed = append(allowed, t)
		}
	}

	verdict := s.validator.Validate(logging.With(ctx, "phase", ValidationNumber), allowed, r.exec)
	r.result.Validation = &verdict
	r.current.Errors = verdict.ScanErrors
	r.current.FinishedAt = time.Now().UTC()
	r.result.Phases = append(r.result.Phases, *r.current)
	r.current = nil
}

// sweep revisits lazy-delete entries left by earlier runs. Entries recorded
// by this run are left alone: their convergence window has not passed.
func (s *scheduler) sweep(ctx context.Context, r *run) error {
	ctx = logging.With(ctx, "phase", SweepNumber)
	r.current = &model.PhaseResult{Number: SweepNumber, Name: SweepName, StartedAt: time.Now().UTC()}
	defer func() {
		r.current.FinishedAt = time.Now().UTC()
		r.result.Phases = append(r.result.Phases, *r.current)
		r.current = nil
	}()

	pending, err := s.store.Pending(ctx)
	if err != nil {
		s.phaseError(ctx, r, err)
		return nil
	}

	for _, entry := range pending {
		if entry.RunID == r.exec.RunID || !r.exec.AccountAllowed(entry.AccountID) || r.denied[entry.AccountID] {
			continue
		}
		if ctx.Err() != nil {
			r.result.Cancelled = true
			return nil
		}

		d, ok := s.registry.Get(entry.ServiceType)
		sweeper, canSweep := d.(core.Sweeper)
		if !ok || !canSweep {
			s.phaseError(ctx, r, fmt.Errorf("lazy-delete entry %s: no sweeper for %q", entry.ID, entry.ServiceType))
			continue
		}

		target := model.Target{AccountID: entry.AccountID, Region: entry.Region}
		err := s.sessions.WithSession(ctx, target, func(h core.ClientHandle) error {
			return s.sweepEntry(ctx, r, sweeper, h, entry)
		})
		switch {
		case err == nil:
		case awserr.IsCredentials(err):
			return err
		default:
			s.phaseError(ctx, r, fmt.Errorf("lazy-delete entry %s: %w", entry.ID, err))
		}
	}
	return nil
}

func (s *scheduler) sweepEntry(ctx context.Context, r *run, sweeper core.Sweeper, h core.ClientHandle, entry model.LazyDeleteEntry) error {
	exists, err := sweeper.Exists(ctx, h, entry)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if !exists {
		entry.Status = model.LazyDeleteCompleted
		entry.UpdatedAt = now
		clog.InfoContext(ctx, "lazy delete converged", "id", entry.ID)
		return s.store.Upsert(ctx, entry)
	}

	o := sweeper.Sweep(context.WithoutCancel(ctx), h, entry, r.exec)
	o.Phase = SweepName
	lazy := o.LazyDelete
	o.LazyDelete = nil
	s.record(ctx, r, o)

	switch {
	case o.Status == model.StatusDestroyed || o.Status == model.StatusSkipped:
		entry.Status = model.LazyDeleteCompleted
		entry.Attempts++
		entry.UpdatedAt = now
	case lazy != nil:
		entry = *lazy
	default:
		entry.Attempts++
		entry.UpdatedAt = now
		entry.Reason = o.Error
	}
	if o.ErrorKind == "credentials" {
		return &awserr.CredentialsError{Err: errors.New(o.Error)}
	}
	return s.store.Upsert(ctx, entry)
}

func groupTargets(targets []model.Target, exec model.ExecutionContext) []account {
	var accounts []account
	index := map[string]int{}
	for _, t := range targets {
		if !exec.AccountAllowed(t.AccountID) {
			continue
		}
		i, ok := index[t.AccountID]
		if !ok {
			i = len(accounts)
			index[t.AccountID] = i
			accounts = append(accounts, account{id: t.AccountID, environment: t.Environment})
		}
		accounts[i].regions = append(accounts[i].regions, t.Region)
	}
	return accounts
}
