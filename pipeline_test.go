package meetingflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexxia-ai/meetingflow/audit"
	"github.com/nexxia-ai/meetingflow/confluence"
	"github.com/nexxia-ai/meetingflow/dates"
	"github.com/nexxia-ai/meetingflow/extract"
	"github.com/nexxia-ai/meetingflow/jira"
	"github.com/nexxia-ai/meetingflow/roster"
	"github.com/nexxia-ai/meetingflow/store"
)

// Monday, so "Friday" resolves to the same week.
var testToday = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

type fakeLLM struct {
	configured    bool
	summary       string
	title         string
	project       string
	tasksResponse string
	summaryErr    error
	tasksErr      error
}

func (f *fakeLLM) IsConfigured() bool { return f.configured }

func (f *fakeLLM) SummarizeMeeting(ctx context.Context, transcript string) (string, error) {
	return f.summary, f.summaryErr
}

func (f *fakeLLM) ExtractTitle(ctx context.Context, transcript string) (string, error) {
	return f.title, nil
}

func (f *fakeLLM) ExtractProjectName(ctx context.Context, transcript, summary string) (string, error) {
	return f.project, nil
}

func (f *fakeLLM) ExtractTasksResponse(ctx context.Context, transcript, summary string) (string, error) {
	return f.tasksResponse, f.tasksErr
}

type fakeTracker struct {
	configured bool
	createErr  error
	duplicates map[string]string

	mu      sync.Mutex
	created []jira.CreateIssueRequest
}

func (f *fakeTracker) IsConfigured() bool { return f.configured }

func (f *fakeTracker) CreateIssue(ctx context.Context, req jira.CreateIssueRequest) (*jira.Issue, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	return &jira.Issue{Key: jiraKey(len(f.created))}, nil
}

func (f *fakeTracker) FindDuplicate(ctx context.Context, summary, assigneeName string) (string, bool, error) {
	key, ok := f.duplicates[summary]
	return key, ok, nil
}

func jiraKey(n int) string {
	return fmt.Sprintf("PROJ-%d", n)
}

type fakeWiki struct {
	configured bool
	err        error

	gotTitle string
	gotHTML  string
}

func (f *fakeWiki) IsConfigured() bool { return f.configured }

func (f *fakeWiki) CreateOrUpdatePage(ctx context.Context, title, html string) (*confluence.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotTitle = title
	f.gotHTML = html
	return &confluence.Page{ID: "99", URL: "https://wiki.example/99", Title: title, Action: "created"}, nil
}

type testEnv struct {
	svc     *Service
	llm     *fakeLLM
	tracker *fakeTracker
	wiki    *fakeWiki
	store   *store.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := store.NewMemoryStore()
	mem.AddMember("Alice Johnson", "Engineer")
	mem.AddMember("Bob Smith", "Engineer")

	env := &testEnv{
		llm: &fakeLLM{
			configured: true,
			summary:    "The team reviewed the quarterly report.",
		},
		tracker: &fakeTracker{configured: true},
		wiki:    &fakeWiki{configured: true},
		store:   mem,
	}
	env.svc = NewService(Options{
		LLM:            env.llm,
		Tracker:        env.tracker,
		Wiki:           env.wiki,
		Store:          mem,
		Roster:         roster.NewRegistry("Alice Johnson", "Bob Smith"),
		Dates:          dates.NewResolver().WithNow(func() time.Time { return testToday }),
		Audit:          audit.NewLogger(audit.Config{Directory: t.TempDir()}),
		TrackerBaseURL: "https://example.atlassian.net",
	})
	return env
}

func TestProcessMeetingStructuredTasks(t *testing.T) {
	env := newTestEnv(t)
	env.llm.project = "Apollo Launch"
	env.llm.tasksResponse = `{"tasks": [{"title": "Finish the quarterly report", "assignee": "Alice", "due_date": "Friday"}]}`

	res := env.svc.ProcessMeeting(context.Background(), "Alice agreed to finish the quarterly report.", time.Time{}, "sync.mp4")

	require.Equal(t, "", res.Err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "Alice Johnson", res.Tasks[0].Assignee)
	assert.Equal(t, "2026-03-06", res.Tasks[0].DueDate)
	assert.Equal(t, extract.MethodStructured, res.Method)

	require.Len(t, res.TicketKeys, 1)
	require.Len(t, env.tracker.created, 1)
	assert.Equal(t, "2026-03-06", env.tracker.created[0].DueDate)
	assert.Equal(t, "Alice Johnson", env.tracker.created[0].AssigneeName)
	assert.Contains(t, env.tracker.created[0].Description, "sync.mp4")
	assert.Equal(t, []string{"meeting-action-item", "apollo-launch"}, env.tracker.created[0].Labels)

	assert.Equal(t, "99", res.PageID)
	assert.Contains(t, env.wiki.gotHTML, "Finish the quarterly report")

	assert.NotZero(t, res.MeetingID)
	assert.NotZero(t, res.TranscriptionID)
	require.Len(t, res.TaskIDs, 1)
	require.Len(t, env.store.Tasks(), 1)
	assert.Equal(t, time.Date(2026, time.March, 6, 0, 0, 0, 0, time.UTC), env.store.Tasks()[0].Deadline)
}

func TestProcessMeetingTextPatternFallback(t *testing.T) {
	env := newTestEnv(t)
	// Empty structured response forces the pattern scan.
	env.llm.tasksResponse = ""

	res := env.svc.ProcessMeeting(context.Background(),
		"Alice will finish the report by Friday.", time.Time{}, "")

	require.Equal(t, "", res.Err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, extract.MethodTextPattern, res.Method)
	assert.Equal(t, "Alice Johnson", res.Tasks[0].Assignee)
	assert.Equal(t, "2026-03-06", res.Tasks[0].DueDate)
}

func TestProcessMeetingTrackerUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	env.tracker.configured = false
	env.llm.tasksResponse = `{"tasks": [{"title": "Draft the release notes", "assignee": "Bob"}]}`

	res := env.svc.ProcessMeeting(context.Background(), "Bob to draft the release notes.", time.Time{}, "")

	assert.Equal(t, "", res.Err)
	assert.Empty(t, res.TicketKeys)
	require.Len(t, res.Tasks, 1)
	// Persist still ran.
	assert.NotZero(t, res.MeetingID)

	var skipped bool
	for _, entry := range env.store.Logs() {
		if entry.Step == StageCreateTickets && entry.Status == store.LogSkipped {
			skipped = true
		}
	}
	assert.True(t, skipped, "create-tickets should be logged as skipped")
}

func TestProcessMeetingDuplicateTicketSkipped(t *testing.T) {
	env := newTestEnv(t)
	env.llm.tasksResponse = `{"tasks": [{"title": "Fix the login bug", "assignee": "Alice"}]}`
	env.tracker.duplicates = map[string]string{"Fix the login bug": "PROJ-7"}

	res := env.svc.ProcessMeeting(context.Background(), "transcript", time.Time{}, "")

	require.Equal(t, "", res.Err)
	assert.Empty(t, res.TicketKeys)
	require.Len(t, res.SkippedTasks, 1)
	assert.Equal(t, "PROJ-7", res.SkippedTasks[0].ExistingKey)
	// The existing ticket still shows up on the page.
	assert.Contains(t, env.wiki.gotHTML, "PROJ-7")
}

func TestProcessMeetingPublishFailureAbsorbed(t *testing.T) {
	env := newTestEnv(t)
	env.llm.tasksResponse = `{"tasks": [{"title": "Update the runbook", "assignee": "Bob"}]}`
	env.wiki.err = errors.New("wiki is down")

	res := env.svc.ProcessMeeting(context.Background(), "transcript", time.Time{}, "")

	assert.Equal(t, "", res.Err)
	assert.Empty(t, res.PageID)
	// Tickets were created before publishing and survive the failure.
	assert.Len(t, res.TicketKeys, 1)
	assert.NotZero(t, res.MeetingID)
}

func TestProcessMeetingSummarizeFailureShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	env.llm.summaryErr = errors.New("model overloaded")

	res := env.svc.ProcessMeeting(context.Background(), "transcript", time.Time{}, "")

	assert.Contains(t, res.Err, "model overloaded")
	assert.Empty(t, res.Tasks)
	assert.Empty(t, res.TicketKeys)
	assert.Empty(t, res.PageID)
	// Persist still ran with what was available.
	assert.NotZero(t, res.TranscriptionID)
	assert.NotZero(t, res.MeetingID)
}

type failingStore struct {
	store.Store
}

func (f *failingStore) SaveMeeting(ctx context.Context, m *store.Meeting) error {
	return errors.New("disk full")
}

func TestProcessMeetingPersistFailure(t *testing.T) {
	env := newTestEnv(t)
	svc := NewService(Options{
		LLM:    env.llm,
		Store:  &failingStore{Store: store.NewMemoryStore()},
		Roster: roster.NewRegistry("Alice Johnson"),
		Dates:  dates.NewResolver().WithNow(func() time.Time { return testToday }),
		Audit:  audit.NewLogger(audit.Config{Directory: t.TempDir()}),
	})

	res := svc.ProcessMeeting(context.Background(), "transcript", time.Time{}, "")

	assert.Contains(t, res.Err, "disk full")
	assert.NotZero(t, res.TranscriptionID)
	assert.Zero(t, res.MeetingID)
}

func TestTruncateTextKeepsRunesWhole(t *testing.T) {
	s := "résumé réview für die Crew"
	for n := 0; n <= len(s); n++ {
		assert.True(t, utf8.ValidString(truncateText(s, n)), "cut at %d", n)
	}
	assert.Equal(t, s, truncateText(s, len(s)))
}

func TestProcessMeetingUnconfiguredLLMUsesTranscriptPrefix(t *testing.T) {
	env := newTestEnv(t)
	env.llm.configured = false

	res := env.svc.ProcessMeeting(context.Background(), "A short standup transcript.", time.Time{}, "")

	assert.Equal(t, "", res.Err)
	assert.Equal(t, "A short standup transcript.", res.Summary)
	assert.Equal(t, extract.MethodNone, res.Method)
}
