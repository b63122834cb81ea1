// Package validator re-scans every account after destruction and names the
// project resources that are still there. It never mutates anything.
package validator

import (
	"context"
	"fmt"
	"slices"

	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/matcher"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

func NewService(sessions core.SessionManager, registry core.Registry, patterns matcher.Patterns, opts ...Option) *service {
	s := &service{sessions: sessions, registry: registry, patterns: patterns}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type account struct {
	id          string
	environment string
	regions     []string
}

func (s *service) Validate(ctx context.Context, targets []model.Target, exec model.ExecutionContext) model.ValidationVerdict {
	var verdict model.ValidationVerdict
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)

	accounts := s.accounts(targets)
	for _, acct := range accounts {
		verdict.Accounts = append(verdict.Accounts, acct.id)
		for _, region := range acct.regions {
			if !slices.Contains(verdict.RegionsScanned, region) {
				verdict.RegionsScanned = append(verdict.RegionsScanned, region)
			}
		}
	}

	for _, acct := range accounts {
		if ctx.Err() != nil {
			verdict.ScanErrors = append(verdict.ScanErrors, fmt.Sprintf("account %s not scanned: %v", acct.id, ctx.Err()))
			continue
		}

		home := model.Target{AccountID: acct.id, Region: acct.regions[0], Environment: acct.environment}
		err := s.sessions.WithSession(ctx, home, func(h core.ClientHandle) error {
			return s.scanAccount(ctx, h, acct, &verdict)
		})
		if err != nil {
			verdict.ScanErrors = append(verdict.ScanErrors, fmt.Sprintf("account %s not scanned: %v", acct.id, err))
		}
	}

	verdict.Clean = len(verdict.Stragglers) == 0 && len(verdict.ScanErrors) == 0
	verdict.Recommendation = s.recommend(ctx, verdict)

	clog.InfoContext(ctx, "validation finished", "clean", verdict.Clean, "stragglers", len(verdict.Stragglers), "scan_errors", len(verdict.ScanErrors))
	return verdict
}

func (s *service) scanAccount(ctx context.Context, h core.ClientHandle, acct account, verdict *model.ValidationVerdict) error {
	for _, name := range s.registry.Names() {
		d, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		regions := acct.regions
		if d.Global() {
			regions = regions[:1]
		}

		for _, region := range regions {
			target := model.Target{AccountID: acct.id, Region: region, Environment: acct.environment}
			found, err := d.Enumerate(ctx, h, target)
			if err != nil {
				if awserr.IsCredentials(err) {
					return err
				}
				verdict.ScanErrors = append(verdict.ScanErrors, fmt.Sprintf("%s in %s: %v", name, target, err))
				continue
			}
			for _, r := range found {
				if matcher.Matches(r, s.patterns).Matched {
					clog.WarnContext(ctx, "straggler", "resource", r.Label(), "account", r.AccountID, "region", r.Region)
					verdict.Stragglers = append(verdict.Stragglers, r)
				}
			}
		}
	}
	return nil
}

func (s *service) recommend(ctx context.Context, verdict model.ValidationVerdict) string {
	if verdict.Clean {
		return ""
	}
	if len(verdict.Stragglers) == 0 {
		return "some accounts or services could not be scanned; fix the scan errors and run validate again"
	}

	deferred := 0
	if s.lazy != nil {
		pending, err := s.lazy.Pending(ctx)
		if err != nil {
			clog.WarnContext(ctx, "could not read lazy-delete entries", "error", err.Error())
		}
		for _, r := range verdict.Stragglers {
			if slices.ContainsFunc(pending, func(e model.LazyDeleteEntry) bool {
				return e.ServiceType == r.ServiceType && e.AccountID == r.AccountID && e.ResourceID == r.Identifier
			}) {
				deferred++
			}
		}
	}

	msg := fmt.Sprintf("%d resource(s) remain; re-run destroy to retry them", len(verdict.Stragglers))
	if deferred > 0 {
		msg += fmt.Sprintf(" (%d pending lazy deletion, expected to converge on their own)", deferred)
	}
	return msg
}

// accounts groups targets per account and appends the validation regions
// to every account's list.
func (s *service) accounts(targets []model.Target) []account {
	var out []account
	index := map[string]int{}
	for _, t := range targets {
		i, ok := index[t.AccountID]
		if !ok {
			i = len(out)
			index[t.AccountID] = i
			out = append(out, account{id: t.AccountID, environment: t.Environment})
		}
		if !slices.Contains(out[i].regions, t.Region) {
			out[i].regions = append(out[i].regions, t.Region)
		}
	}
	for i := range out {
		for _, r := range s.regions {
			if !slices.Contains(out[i].regions, r) {
				out[i].regions = append(out[i].regions, r)
			}
		}
	}
	return out
}
