// Package schedule parses recurrence rules and computes when a job is next
// due. Three rule forms are supported, matching the configuration surface:
// "every N minutes", "every N hours" and "daily at HH:MM".
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ruleKind int

const (
	periodic ruleKind = iota
	dailyAt
)

// Rule is a parsed recurrence rule.
type Rule struct {
	kind   ruleKind
	period time.Duration
	hour   int
	minute int
	raw    string
}

// String returns the original rule text.
func (r Rule) String() string { return r.raw }

// Parse parses a recurrence rule. The leading "every" is optional for the
// periodic forms.
func Parse(s string) (Rule, error) {
	raw := s
	text := strings.ToLower(strings.TrimSpace(s))

	if rest, ok := strings.CutPrefix(text, "daily at "); ok {
		t, err := time.Parse("15:04", strings.TrimSpace(rest))
		if err != nil {
			return Rule{}, fmt.Errorf("schedule: bad wall-clock time in %q: %w", s, err)
		}
		return Rule{kind: dailyAt, hour: t.Hour(), minute: t.Minute(), raw: raw}, nil
	}

	text = strings.TrimPrefix(text, "every ")
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Rule{}, fmt.Errorf("schedule: unrecognized rule %q", s)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return Rule{}, fmt.Errorf("schedule: bad interval in %q", s)
	}

	switch fields[1] {
	case "minute", "minutes":
		return Rule{kind: periodic, period: time.Duration(n) * time.Minute, raw: raw}, nil
	case "hour", "hours":
		return Rule{kind: periodic, period: time.Duration(n) * time.Hour, raw: raw}, nil
	}
	return Rule{}, fmt.Errorf("schedule: unrecognized unit in %q", s)
}

// Next returns the first instant strictly after t at which the rule fires.
func (r Rule) Next(t time.Time) time.Time {
	if r.kind == periodic {
		return t.Add(r.period)
	}
	next := time.Date(t.Year(), t.Month(), t.Day(), r.hour, r.minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
