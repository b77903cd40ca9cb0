// Package recurrence turns a job's rule string into concrete occurrence
// times. Rules come in two forms:
//
//   - a bare RFC 3339 timestamp: fires exactly once at that instant
//   - "cron:<5-field expr>" (or "cron <5-field expr>"): standard crontab
//     syntax, evaluated in UTC
//
// Parsing and Next are pure; safe to call from any goroutine.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
)

// parser accepts the standard 5-field crontab syntax only. Descriptors
// like @daily are deliberately not supported.
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Kind distinguishes one-shot rules from cron rules.
type Kind int

const (
	KindOnce Kind = iota
	KindCron
)

// Rule is a parsed recurrence rule.
type Rule struct {
	Kind Kind

	at       time.Time
	schedule cron.Schedule
}

// Parse parses a rule string. An unparseable rule wraps
// domain.ErrInvalidRule so callers can treat it as a configuration fault.
func Parse(raw string) (Rule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Rule{}, fmt.Errorf("%w: empty rule", domain.ErrInvalidRule)
	}

	if expr, ok := cronExpr(s); ok {
		if expr == "" {
			return Rule{}, fmt.Errorf("%w: empty cron expression", domain.ErrInvalidRule)
		}
		schedule, err := parser.Parse(expr)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %q: %v", domain.ErrInvalidRule, expr, err)
		}
		return Rule{Kind: KindCron, schedule: schedule}, nil
	}

	at, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %q is neither a cron rule nor an RFC 3339 timestamp", domain.ErrInvalidRule, raw)
	}
	return Rule{Kind: KindOnce, at: at.UTC()}, nil
}

// cronExpr strips the cron tag from a rule. Both "cron:<expr>" and
// "cron <expr>" are accepted.
func cronExpr(s string) (string, bool) {
	if rest, ok := strings.CutPrefix(s, "cron:"); ok {
		return strings.TrimSpace(rest), true
	}
	if rest, ok := strings.CutPrefix(s, "cron "); ok {
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// Next returns the smallest fire time strictly after the given instant,
// or the zero time when the rule never fires again. Cron rules are
// evaluated in UTC; a one-shot rule fires only if its instant is still
// ahead of the cursor.
func (r Rule) Next(after time.Time) time.Time {
	switch r.Kind {
	case KindOnce:
		if r.at.After(after) {
			return r.at
		}
		return time.Time{}
	case KindCron:
		return r.schedule.Next(after.UTC())
	}
	return time.Time{}
}
