package httptracer

import (
	"fmt"
	"regexp"
)

// IgnoreRule excludes certain requests from tracing entirely. A rule is
// matched against the full URL for outbound requests, and against the
// request path for inbound requests.
//
// Rules are stateless; a rule set is configuration, not runtime state.
type IgnoreRule interface {
	// Matches reports whether candidate shall be excluded from tracing.
	Matches(candidate string) bool
}

// IgnoreExact returns an IgnoreRule matching candidates by string equality.
func IgnoreExact(s string) IgnoreRule { return exactRule(s) }

// IgnorePattern returns an IgnoreRule matching candidates against the given
// compiled pattern.
func IgnorePattern(re *regexp.Regexp) IgnoreRule { return &patternRule{re} }

// IgnorePredicate returns an IgnoreRule delegating the decision to fn.
//
// If fn panics during evaluation, the candidate is NOT ignored, and the
// panic is logged as a non-fatal error; a user-supplied predicate can never
// abort the exchange being classified.
func IgnorePredicate(fn func(candidate string) bool) IgnoreRule { return &predicateRule{fn} }

type exactRule string

func (r exactRule) Matches(candidate string) bool { return string(r) == candidate }

type patternRule struct{ re *regexp.Regexp }

func (r *patternRule) Matches(candidate string) bool { return r.re.MatchString(candidate) }

type predicateRule struct{ fn func(string) bool }

func (r *predicateRule) Matches(candidate string) bool { return r.fn(candidate) }

// IgnoreRules is an ordered set of IgnoreRules, evaluated first-match-wins.
type IgnoreRules []IgnoreRule

// Ignores reports whether any rule matches candidate. Evaluation
// short-circuits on the first match. An empty or nil rule set never ignores.
func (rules IgnoreRules) Ignores(candidate string, log Logger) bool {
	for _, rule := range rules {
		if matchGuarded(rule, candidate, log) {
			return true
		}
	}
	return false
}

// matchGuarded evaluates one rule, converting a predicate panic into
// "do not ignore" plus a log entry.
func matchGuarded(rule IgnoreRule, candidate string, log Logger) (matched bool) {
	defer func() {
		if p := recover(); p != nil {
			matched = false
			log.Error(panicError(p), "ignore rule panicked; not ignoring", "candidate", candidate)
		}
	}()
	return rule.Matches(candidate)
}

// panicError converts a recovered panic value into an error.
func panicError(p interface{}) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", p)
}
