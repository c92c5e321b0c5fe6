package dates

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedResolver returns a resolver pinned to Monday 2026-03-02.
func fixedResolver() *Resolver {
	monday := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	return NewResolver().WithNow(func() time.Time { return monday })
}

func TestResolveSentinels(t *testing.T) {
	r := fixedResolver()
	for _, text := range []string{"", "null", "None", "N/A", "unspecified", "  "} {
		_, ok := r.Resolve(text)
		assert.False(t, ok, "expected no date for %q", text)
	}
}

func TestResolveISO(t *testing.T) {
	r := fixedResolver()
	d, ok := r.Resolve("2026-02-22")
	require.True(t, ok)
	assert.Equal(t, "2026-02-22", FormatISO(d))
}

func TestResolveISORoundTrip(t *testing.T) {
	r := fixedResolver()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 366; i += 13 {
		want := start.AddDate(0, 0, i).Format("2006-01-02")
		got, ok := r.Resolve(want)
		require.True(t, ok, "failed to parse %s", want)
		assert.Equal(t, want, FormatISO(got))
	}
}

func TestResolveExplicitFormats(t *testing.T) {
	r := fixedResolver()
	cases := map[string]string{
		"22/02/2026":        "2026-02-22",
		"February 22, 2026": "2026-02-22",
		"Feb 22, 2026":      "2026-02-22",
		"22 February 2026":  "2026-02-22",
	}
	for text, want := range cases {
		d, ok := r.Resolve(text)
		require.True(t, ok, "failed to parse %q", text)
		assert.Equal(t, want, FormatISO(d), "input %q", text)
	}
}

func TestResolveRelative(t *testing.T) {
	r := fixedResolver() // Monday 2026-03-02

	cases := map[string]string{
		"today":           "2026-03-02",
		"tomorrow":        "2026-03-03",
		"yesterday":       "2026-03-01",
		"next week":       "2026-03-09",
		"in 3 days":       "2026-03-05",
		"in 2 weeks":      "2026-03-16",
		"5 days from now": "2026-03-07",
		"end of week":     "2026-03-08", // coming Sunday
		"end of month":    "2026-03-31",
	}
	for text, want := range cases {
		d, ok := r.Resolve(text)
		require.True(t, ok, "failed to parse %q", text)
		assert.Equal(t, want, FormatISO(d), "input %q", text)
	}
}

func TestResolveWeekdayNames(t *testing.T) {
	r := fixedResolver() // Monday 2026-03-02

	cases := map[string]string{
		"Friday":      "2026-03-06",
		"fri":         "2026-03-06",
		"next Friday": "2026-03-06",
		"Wednesday":   "2026-03-04",
		// Today is Monday: a bare "Monday" rolls a full week forward.
		"Monday": "2026-03-09",
	}
	for text, want := range cases {
		d, ok := r.Resolve(text)
		require.True(t, ok, "failed to parse %q", text)
		assert.Equal(t, want, FormatISO(d), "input %q", text)
	}
}

func TestEndOfWeekOnSunday(t *testing.T) {
	sunday := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	r := NewResolver().WithNow(func() time.Time { return sunday })

	d, ok := r.Resolve("end of week")
	require.True(t, ok)
	assert.Equal(t, "2026-03-15", FormatISO(d))
}

func TestEndOfMonthDecember(t *testing.T) {
	dec := time.Date(2026, 12, 10, 9, 0, 0, 0, time.UTC)
	r := NewResolver().WithNow(func() time.Time { return dec })

	d, ok := r.Resolve("end of month")
	require.True(t, ok)
	assert.Equal(t, "2026-12-31", FormatISO(d))
}

func TestResolveUnparseable(t *testing.T) {
	r := fixedResolver()
	_, ok := r.Resolve("whenever works for everyone")
	assert.False(t, ok)
}

func TestDefaultDeadline(t *testing.T) {
	r := fixedResolver()
	assert.Equal(t, fmt.Sprintf("2026-03-%02d", 2+DefaultDeadlineDays), FormatISO(r.DefaultDeadline()))
}

func TestFormatISOZero(t *testing.T) {
	assert.Equal(t, "", FormatISO(time.Time{}))
}
