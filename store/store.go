// Package store persists meetings, transcriptions, extracted tasks and
// processing logs. Two implementations are provided: an in-memory
// store for tests and single-shot runs, and a Postgres store for the
// long-running watcher.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// Log entry statuses.
const (
	LogStarted   = "started"
	LogCompleted = "completed"
	LogFailed    = "failed"
	LogSkipped   = "skipped"
)

// Member is a team member tasks can be assigned to.
type Member struct {
	ID          int64
	Name        string
	Designation string
}

// Transcription is the stored summary of one processed recording.
type Transcription struct {
	ID      int64
	Summary string
}

// Meeting ties a transcription to a date and, when publishing
// succeeded, to the wiki page that documents it.
type Meeting struct {
	ID              int64
	Date            time.Time
	TranscriptionID int64
	PageID          string
	PageURL         string
}

// Task is one persisted action item. Deadline is always set: tasks
// without a resolvable due date get a default deadline before they
// reach the store.
type Task struct {
	ID          int64
	MemberID    int64
	Description string
	Deadline    time.Time
}

// LogEntry records one processing step outcome. MeetingID is zero for
// steps that run before a meeting row exists.
type LogEntry struct {
	ID        int64
	MeetingID int64
	Step      string
	Status    string
	Message   string
	CreatedAt time.Time
}

// Store is the persistence surface the pipeline writes through.
// Save methods assign the record's ID on success.
type Store interface {
	Members(ctx context.Context) ([]Member, error)
	MemberByName(ctx context.Context, name string) (*Member, error)
	SaveTranscription(ctx context.Context, t *Transcription) error
	SaveMeeting(ctx context.Context, m *Meeting) error
	SaveTask(ctx context.Context, task *Task) error
	AppendLog(ctx context.Context, entry *LogEntry) error
	Ping(ctx context.Context) error
}
