// Package matcher decides whether a resource belongs to the project. It is
// pure: no provider calls, no clock, no randomness.
package matcher

import (
	"fmt"
	"strings"

	"github.com/elC0mpa/aws-teardown/model"
)

// minPatternLength keeps short patterns from matching half the account.
const minPatternLength = 3

const separators = "-_./: "

// Patterns is the compiled form of the ownership and preserve configuration
// for one scope.
type Patterns struct {
	Fragments        []string
	Prefixes         []string
	StateBackend     []string
	Tags             []model.TagRule
	PreserveNames    []string
	PreservePrefixes []string
	TerraformCleanup bool
}

// NewPatterns builds the pattern set for a run. The cross-account role is
// always preserved: deleting it would lock the engine out mid-run.
func NewPatterns(cfg model.Config, exec model.ExecutionContext) Patterns {
	preserve := cfg.Preserve[exec.Scope]

	p := Patterns{
		Fragments:        lowerAll(cfg.Ownership.Fragments),
		Prefixes:         lowerAll(cfg.Ownership.Prefixes),
		StateBackend:     lowerAll(cfg.Ownership.StateBackend),
		Tags:             cfg.Ownership.Tags,
		PreserveNames:    lowerAll(preserve.Names),
		PreservePrefixes: lowerAll(preserve.Prefixes),
		TerraformCleanup: exec.TerraformCleanup,
	}
	if cfg.CrossAccountRoleName != "" {
		p.PreserveNames = append(p.PreserveNames, strings.ToLower(cfg.CrossAccountRoleName))
	}
	return p
}

// Matches returns the ownership decision for r. Anything ambiguous is not a
// match.
func Matches(r model.ResourceDescriptor, p Patterns) model.MatchResult {
	names := candidateNames(r)
	if len(names) == 0 && len(r.Tags) == 0 {
		return model.MatchResult{Reason: "no name or tags to match on"}
	}

	for _, n := range names {
		if reason, ok := preserved(n, p); ok {
			return model.MatchResult{Reason: reason}
		}
	}

	for _, n := range names {
		if pattern, ok := firstPrefix(n, p.StateBackend); ok {
			if !p.TerraformCleanup {
				return model.MatchResult{Reason: fmt.Sprintf("terraform state backend %q kept", pattern)}
			}
			return model.MatchResult{Matched: true, Reason: fmt.Sprintf("state backend prefix %q", pattern)}
		}
	}

	for _, rule := range p.Tags {
		if rule.Key == "" || rule.Value == "" {
			continue
		}
		if v, ok := r.Tags[rule.Key]; ok && v == rule.Value {
			return model.MatchResult{Matched: true, Reason: fmt.Sprintf("tag %s=%s", rule.Key, rule.Value)}
		}
	}

	for _, n := range names {
		if pattern, ok := firstPrefix(n, p.Prefixes); ok {
			return model.MatchResult{Matched: true, Reason: fmt.Sprintf("name prefix %q", pattern)}
		}
		if fragment, ok := firstFragment(n, p.Fragments); ok {
			return model.MatchResult{Matched: true, Reason: fmt.Sprintf("name fragment %q", fragment)}
		}
	}

	return model.MatchResult{Reason: "no ownership pattern matched"}
}

// candidateNames are the lower-cased strings names are matched against: the
// resource name, and the Name tag when it differs.
func candidateNames(r model.ResourceDescriptor) []string {
	var names []string
	if n := strings.ToLower(strings.TrimSpace(r.Name)); n != "" {
		names = append(names, n)
	}
	if tag := strings.ToLower(strings.TrimSpace(r.Tags["Name"])); tag != "" && (len(names) == 0 || names[0] != tag) {
		names = append(names, tag)
	}
	return names
}

func preserved(name string, p Patterns) (string, bool) {
	for _, keep := range p.PreserveNames {
		if keep != "" && name == keep {
			return fmt.Sprintf("preserved name %q", keep), true
		}
	}
	for _, keep := range p.PreservePrefixes {
		if keep != "" && strings.HasPrefix(name, keep) {
			return fmt.Sprintf("preserved prefix %q", keep), true
		}
	}
	return "", false
}

// firstPrefix requires the prefix to end on a token boundary unless it ends
// with a separator itself: "static-site" matches "static-site-logs" but not
// "static-sitemap-archive".
func firstPrefix(name string, prefixes []string) (string, bool) {
	for _, prefix := range prefixes {
		if len(prefix) < minPatternLength {
			continue
		}
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if boundary(prefix, len(prefix)-1) || boundary(name, len(prefix)) {
			return prefix, true
		}
	}
	return "", false
}

// firstFragment matches fragments on token boundaries only, so "app" matches
// "my-app-logs" but not "happy".
func firstFragment(name string, fragments []string) (string, bool) {
	for _, fragment := range fragments {
		if len(fragment) < minPatternLength {
			continue
		}
		for from := 0; from < len(name); {
			idx := strings.Index(name[from:], fragment)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(fragment)
			if boundary(name, start-1) && boundary(name, end) {
				return fragment, true
			}
			from = start + 1
		}
	}
	return "", false
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	return strings.IndexByte(separators, s[i]) >= 0
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
