package meetingflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Stage names, in execution order.
const (
	StageSummarize     = "summarize"
	StageExtractTasks  = "extract-tasks"
	StageCreateTickets = "create-tickets"
	StagePublishPage   = "publish-page"
	StagePersist       = "persist"
)

type stage struct {
	name string
	fn   func(context.Context, *RunState)

	// absorbErrors marks stages whose failure must not stop the run.
	// The stage logs the failure and the pipeline carries on.
	absorbErrors bool

	// alwaysRun marks stages that execute even after a terminal
	// error, so partial results still get written.
	alwaysRun bool
}

// runPipeline executes the fixed stage order: summarize, extract
// tasks, create tickets, publish the wiki page, persist. A terminal
// error in a business stage jumps straight to persist. Publish-page
// failures never become terminal because an unreachable wiki must not
// undo ticket creation or block persistence.
func (s *Service) runPipeline(ctx context.Context, st *RunState) *RunResult {
	stages := []stage{
		{name: StageSummarize, fn: s.stageSummarize},
		{name: StageExtractTasks, fn: s.stageExtractTasks},
		{name: StageCreateTickets, fn: s.stageCreateTickets},
		{name: StagePublishPage, fn: s.stagePublishPage, absorbErrors: true},
		{name: StagePersist, fn: s.stagePersist, alwaysRun: true},
	}

	st.RunID = uuid.New().String()
	if st.MeetingDate.IsZero() {
		st.MeetingDate = s.dates.Today()
	}
	st.audit = s.audit.NewRun(st.Filename)
	s.metrics.RecordRunStarted()
	slog.Info("pipeline run started", "run_id", st.RunID, "file", st.Filename)

	for _, stg := range stages {
		if st.Err != nil && !stg.alwaysRun {
			st.audit.Step(stg.name, "skipped", "previous stage failed")
			continue
		}

		st.CurrentStage = stg.name
		if stg.absorbErrors {
			err := st.Err
			stg.fn(ctx, st)
			// Restore: whatever the stage set is absorbed.
			st.Err = err
			continue
		}
		stg.fn(ctx, st)
	}
	st.CurrentStage = "done"

	s.metrics.RecordRunFinished(st.Err != nil)
	st.audit.Close(st.Err)
	return st.result()
}
