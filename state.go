package meetingflow

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexxia-ai/meetingflow/audit"
	"github.com/nexxia-ai/meetingflow/confluence"
	"github.com/nexxia-ai/meetingflow/extract"
)

// SkippedTask is an action item that already had an open ticket and
// was therefore not created again.
type SkippedTask struct {
	Description string
	Assignee    string
	ExistingKey string
}

// RunState is the mutable record threaded through one pipeline run.
// Stages read and write it in order; once Err is set, the remaining
// business stages are skipped and only persist still runs.
type RunState struct {
	RunID       string
	Transcript  string
	MeetingDate time.Time
	Filename    string
	FilePath    string

	Title   string
	Project string
	Summary string

	Method       extract.Method
	RawTasks     []extract.RawTask
	Tasks        []extract.Task
	TicketKeys   []string
	SkippedTasks []SkippedTask
	ActionItems  []confluence.ActionItem

	PageID  string
	PageURL string

	TranscriptionID int64
	MeetingID       int64
	TaskIDs         []int64

	Log          []string
	Err          error
	CurrentStage string

	audit *audit.Run
}

// logf appends one line to the run's decision log and mirrors it to
// the structured logger.
func (st *RunState) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	st.Log = append(st.Log, line)
	slog.Info(line, "stage", st.CurrentStage, "file", st.Filename)
}

// fail records the stage's terminal error. A persist failure after an
// earlier stage error keeps both.
func (st *RunState) fail(stage string, err error) {
	wrapped := fmt.Errorf("%s: %w", stage, err)
	if st.Err != nil {
		st.Err = errors.Join(st.Err, wrapped)
	} else {
		st.Err = wrapped
	}
	st.logf("%s failed: %v", stage, err)
}

// RunResult is the caller-facing outcome of one run. Every field is
// best-effort populated even when Err is set.
type RunResult struct {
	RunID    string
	Filename string
	Skipped  bool

	Summary string
	Title   string
	Project string

	Method       extract.Method
	RawTasks     []extract.RawTask
	Tasks        []extract.Task
	TicketKeys   []string
	SkippedTasks []SkippedTask

	PageID  string
	PageURL string

	TranscriptionID int64
	MeetingID       int64
	TaskIDs         []int64

	Log []string
	Err string
}

func (st *RunState) result() *RunResult {
	res := &RunResult{
		RunID:           st.RunID,
		Filename:        st.Filename,
		Summary:         st.Summary,
		Title:           st.Title,
		Project:         st.Project,
		Method:          st.Method,
		RawTasks:        st.RawTasks,
		Tasks:           st.Tasks,
		TicketKeys:      st.TicketKeys,
		SkippedTasks:    st.SkippedTasks,
		PageID:          st.PageID,
		PageURL:         st.PageURL,
		TranscriptionID: st.TranscriptionID,
		MeetingID:       st.MeetingID,
		TaskIDs:         st.TaskIDs,
		Log:             st.Log,
	}
	if st.Err != nil {
		res.Err = st.Err.Error()
	}
	return res
}

// Failed reports whether the run ended with a terminal error.
func (r *RunResult) Failed() bool {
	return r.Err != ""
}
