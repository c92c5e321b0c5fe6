package confluence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMeetingPage(t *testing.T) {
	html := BuildMeetingPage(MeetingPage{
		Title:   "Weekly Sync <Q1>",
		Date:    "2026-03-02",
		Summary: "We discussed the release & the login bug.",
		ActionItems: []ActionItem{
			{Key: "PROJ-42", Description: "Fix the login bug", Assignee: "Kailas S S"},
			{Description: "Draft the release notes"},
		},
		Transcript:     "Alice: hello.\n\nBob: hi there.",
		TrackerBaseURL: "https://example.atlassian.net",
	})

	assert.Contains(t, html, "<h1>Weekly Sync &lt;Q1&gt;</h1>")
	assert.Contains(t, html, "<p><strong>Date:</strong> 2026-03-02</p>")
	assert.Contains(t, html, "the release &amp; the login bug")
	assert.Contains(t, html, `<a href="https://example.atlassian.net/browse/PROJ-42">PROJ-42</a>`)
	assert.Contains(t, html, "<li>Draft the release notes (Unassigned)</li>")
	assert.Contains(t, html, `<ac:structured-macro ac:name="expand">`)
	assert.Contains(t, html, "<p>Alice: hello.</p>")
	assert.Contains(t, html, "<p>Bob: hi there.</p>")
}

func TestBuildMeetingPageOmitsEmptySections(t *testing.T) {
	html := BuildMeetingPage(MeetingPage{Date: "2026-03-02", Summary: "Short meeting."})

	assert.Contains(t, html, "<h1>Meeting 2026-03-02</h1>")
	assert.NotContains(t, html, "Key Points")
	assert.NotContains(t, html, "Action Items")
	assert.NotContains(t, html, "Transcript")
}

func TestBuildMeetingPageSections(t *testing.T) {
	html := BuildMeetingPage(MeetingPage{
		Title:     "Planning",
		Summary:   "Planned the sprint.",
		KeyPoints: []string{"Velocity is stable"},
		Decisions: []string{"Ship on Friday"},
	})

	assert.Contains(t, html, "<h2>Key Points</h2>")
	assert.Contains(t, html, "<li>Velocity is stable</li>")
	assert.Contains(t, html, "<h2>Decisions</h2>")
	assert.Contains(t, html, "<li>Ship on Friday</li>")
}
