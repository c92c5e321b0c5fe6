// Package dates resolves due-date expressions into calendar dates.
// It accepts ISO dates, common explicit formats, natural language
// ("tomorrow", "in 3 days") and a small set of relative expressions.
package dates

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules"
	"github.com/olebedev/when/rules/en"
)

// DefaultDeadlineDays is used by callers when a task carries no resolvable
// due date.
const DefaultDeadlineDays = 7

var sentinels = map[string]bool{
	"":            true,
	"null":        true,
	"none":        true,
	"n/a":         true,
	"unspecified": true,
}

var isoPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Resolver parses date expressions relative to a clock. The zero clock is
// time.Now; tests inject a fixed one.
type Resolver struct {
	now func() time.Time
	nl  *when.Parser
}

func NewResolver() *Resolver {
	// Bare weekday names are deliberately not handled by the natural
	// language parser; resolveRelative owns them so that "Friday" always
	// means the next occurrence with today excluded.
	nl := when.New(nil)
	nl.Add(en.CasualDate(rules.Override))
	nl.Add(en.Deadline(rules.Override))

	return &Resolver{now: time.Now, nl: nl}
}

// WithNow overrides the resolver's clock and returns the resolver.
func (r *Resolver) WithNow(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve parses text into a calendar date. The boolean is false when the
// text is a null sentinel or no strategy can parse it; callers fall back to
// DefaultDeadline rather than treating that as an error.
func (r *Resolver) Resolve(text string) (time.Time, bool) {
	trimmed := strings.TrimSpace(text)
	if sentinels[strings.ToLower(trimmed)] {
		return time.Time{}, false
	}

	if isoPattern.MatchString(trimmed) {
		if t, err := time.Parse("2006-01-02", trimmed); err == nil {
			return dateOnly(t), true
		}
	}

	// Explicit formats: day-first for ambiguous slash dates, matching the
	// DD/MM/YYYY convention used in meeting notes.
	if t, err := dateparse.ParseAny(trimmed,
		dateparse.PreferMonthFirst(false),
		dateparse.RetryAmbiguousDateWithSwap(true)); err == nil {
		return dateOnly(t), true
	}

	now := r.now()
	if res, err := r.nl.Parse(trimmed, now); err == nil && res != nil {
		d := dateOnly(res.Time)
		slog.Debug("parsed natural language date", "text", trimmed, "date", d.Format("2006-01-02"))
		return d, true
	}

	if t, ok := r.resolveRelative(strings.ToLower(trimmed), now); ok {
		return t, true
	}

	slog.Debug("could not parse date", "text", trimmed)
	return time.Time{}, false
}

// DefaultDeadline returns today plus DefaultDeadlineDays.
func (r *Resolver) DefaultDeadline() time.Time {
	return dateOnly(r.now()).AddDate(0, 0, DefaultDeadlineDays)
}

// Today returns the resolver's current calendar date.
func (r *Resolver) Today() time.Time {
	return dateOnly(r.now())
}

var (
	inDaysPattern      = regexp.MustCompile(`^in\s+(\d+)\s+days?$`)
	inWeeksPattern     = regexp.MustCompile(`^in\s+(\d+)\s+weeks?$`)
	daysFromNowPattern = regexp.MustCompile(`^(\d+)\s+days?\s+from\s+now$`)
)

// weekdayNames is ordered so the lookup is deterministic; abbreviations map
// to the same weekday as their long form.
var weekdayNames = []struct {
	name string
	day  time.Weekday
}{
	{"monday", time.Monday}, {"mon", time.Monday},
	{"tuesday", time.Tuesday}, {"tues", time.Tuesday}, {"tue", time.Tuesday},
	{"wednesday", time.Wednesday}, {"wed", time.Wednesday},
	{"thursday", time.Thursday}, {"thurs", time.Thursday}, {"thur", time.Thursday}, {"thu", time.Thursday},
	{"friday", time.Friday}, {"fri", time.Friday},
	{"saturday", time.Saturday}, {"sat", time.Saturday},
	{"sunday", time.Sunday}, {"sun", time.Sunday},
}

func (r *Resolver) resolveRelative(text string, now time.Time) (time.Time, bool) {
	today := dateOnly(now)

	switch text {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "yesterday":
		return today.AddDate(0, 0, -1), true
	case "next week":
		return today.AddDate(0, 0, 7), true
	case "end of week":
		return endOfWeek(today), true
	case "end of month":
		return endOfMonth(today), true
	}

	if m := inDaysPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, n), true
	}
	if m := inWeeksPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, n*7), true
	}
	if m := daysFromNowPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, n), true
	}

	for _, w := range weekdayNames {
		if strings.Contains(text, w.name) {
			return nextWeekday(today, w.day), true
		}
	}

	return time.Time{}, false
}

// endOfWeek returns the coming Sunday, or the following Sunday when today is
// already Sunday.
func endOfWeek(today time.Time) time.Time {
	days := (int(time.Sunday) - int(today.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDate(0, 0, days)
}

func endOfMonth(today time.Time) time.Time {
	firstOfNext := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}

// nextWeekday returns the next occurrence of day, never today.
func nextWeekday(today time.Time, day time.Weekday) time.Time {
	days := (int(day) - int(today.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDate(0, 0, days)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatISO formats a resolved date as YYYY-MM-DD. The zero time formats to
// an empty string.
func FormatISO(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
