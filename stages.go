package meetingflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nexxia-ai/meetingflow/ai"
	"github.com/nexxia-ai/meetingflow/confluence"
	"github.com/nexxia-ai/meetingflow/dates"
	"github.com/nexxia-ai/meetingflow/extract"
	"github.com/nexxia-ai/meetingflow/jira"
	"github.com/nexxia-ai/meetingflow/store"
)

const fallbackSummaryLen = 500

// logStep writes one processing-log row, the audit file line and the
// in-memory decision log.
func (s *Service) logStep(ctx context.Context, st *RunState, stage, status, message string) {
	st.audit.Step(stage, status, message)
	entry := &store.LogEntry{
		MeetingID: st.MeetingID,
		Step:      stage,
		Status:    status,
		Message:   message,
	}
	if err := s.store.AppendLog(ctx, entry); err != nil {
		st.logf("could not write processing log for %s: %v", stage, err)
	}
}

// stageSummarize transcribes the recording when needed and produces
// the summary, title and project name. Transcription failures are
// fatal to the run; an unconfigured LLM downgrades the stage to a
// transcript-prefix summary instead of failing.
func (s *Service) stageSummarize(ctx context.Context, st *RunState) {
	s.logStep(ctx, st, StageSummarize, store.LogStarted, "")

	if st.Transcript == "" && st.FilePath != "" {
		if s.transcriber == nil || !s.transcriber.Ready() {
			st.fail(StageSummarize, errors.New("transcriber not available"))
			s.logStep(ctx, st, StageSummarize, store.LogFailed, "transcriber not available")
			return
		}
		transcript, err := s.transcriber.TranscribeFile(ctx, st.FilePath)
		if err != nil {
			st.fail(StageSummarize, err)
			s.logStep(ctx, st, StageSummarize, store.LogFailed, err.Error())
			return
		}
		st.Transcript = transcript
		st.logf("transcribed %s (%d chars)", st.Filename, len(transcript))
	}

	if st.Transcript == "" {
		st.fail(StageSummarize, errors.New("empty transcript"))
		s.logStep(ctx, st, StageSummarize, store.LogFailed, "empty transcript")
		return
	}

	if s.llm == nil || !s.llm.IsConfigured() {
		st.Summary = truncateText(st.Transcript, fallbackSummaryLen)
		st.logf("llm not configured, using transcript prefix as summary")
		s.logStep(ctx, st, StageSummarize, store.LogSkipped, "llm not configured")
		return
	}

	summary, err := s.llm.SummarizeMeeting(ctx, st.Transcript)
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			st.Summary = truncateText(st.Transcript, fallbackSummaryLen)
			s.logStep(ctx, st, StageSummarize, store.LogSkipped, "llm not configured")
			return
		}
		st.fail(StageSummarize, err)
		s.logStep(ctx, st, StageSummarize, store.LogFailed, err.Error())
		return
	}
	st.Summary = summary
	st.logf("generated summary (%d chars)", len(summary))

	// Title and project are nice-to-have page metadata. Their
	// failures never block the run.
	if title, err := s.llm.ExtractTitle(ctx, st.Transcript); err == nil && title != "" {
		st.Title = title
		st.logf("extracted title %q", title)
	} else if err != nil {
		st.logf("title extraction failed: %v", err)
	}
	if project, err := s.llm.ExtractProjectName(ctx, st.Transcript, st.Summary); err == nil && project != "" {
		st.Project = project
		st.logf("extracted project %q", project)
	}

	s.logStep(ctx, st, StageSummarize, store.LogCompleted, fmt.Sprintf("summary length %d", len(summary)))
}

// stageExtractTasks runs the extraction cascade. A failed LLM call is
// treated as an empty structured response so the text-pattern
// fallback still gets its chance; the cascade itself never errors.
func (s *Service) stageExtractTasks(ctx context.Context, st *RunState) {
	s.logStep(ctx, st, StageExtractTasks, store.LogStarted, "")

	llmResponse := ""
	if s.llm != nil && s.llm.IsConfigured() {
		response, err := s.llm.ExtractTasksResponse(ctx, st.Transcript, st.Summary)
		if err != nil {
			st.logf("structured task extraction call failed, falling back to patterns: %v", err)
		} else {
			llmResponse = response
		}
	} else {
		st.logf("llm not configured, extracting tasks from text patterns")
	}

	result := s.extractor.Extract(st.Transcript, st.Summary, llmResponse)
	st.Tasks = result.Tasks
	st.RawTasks = result.Raw
	st.Method = result.Method

	s.metrics.RecordTasksExtracted(string(result.Method), len(result.Tasks))
	st.logf("extracted %d task(s) via %s", len(result.Tasks), result.Method)
	s.logStep(ctx, st, StageExtractTasks, store.LogCompleted,
		fmt.Sprintf("%d tasks via %s", len(result.Tasks), result.Method))
}

// stageCreateTickets creates one tracker ticket per extracted task,
// skipping tasks that already have an open ticket with the same
// summary and assignee. An unconfigured tracker skips the stage.
func (s *Service) stageCreateTickets(ctx context.Context, st *RunState) {
	if len(st.Tasks) == 0 {
		st.logf("no tasks, nothing to ticket")
		s.logStep(ctx, st, StageCreateTickets, store.LogCompleted, "no tasks")
		return
	}
	if s.tracker == nil || !s.tracker.IsConfigured() {
		st.logf("tracker not configured, skipping ticket creation")
		s.logStep(ctx, st, StageCreateTickets, store.LogSkipped, "tracker not configured")
		st.ActionItems = actionItemsFromTasks(st.Tasks)
		return
	}

	s.logStep(ctx, st, StageCreateTickets, store.LogStarted, "")

	labels := []string{"meeting-action-item"}
	if st.Project != "" {
		labels = append(labels, projectLabel(st.Project))
	}

	for _, task := range st.Tasks {
		existingKey, found, err := s.tracker.FindDuplicate(ctx, task.Description, task.Assignee)
		if err != nil {
			st.fail(StageCreateTickets, err)
			s.logStep(ctx, st, StageCreateTickets, store.LogFailed, err.Error())
			return
		}
		if found {
			st.SkippedTasks = append(st.SkippedTasks, SkippedTask{
				Description: task.Description,
				Assignee:    task.Assignee,
				ExistingKey: existingKey,
			})
			st.ActionItems = append(st.ActionItems, actionItem(task, existingKey))
			st.logf("skipped duplicate task %q, existing ticket %s", task.Description, existingKey)
			continue
		}

		issue, err := s.tracker.CreateIssue(ctx, jira.CreateIssueRequest{
			Summary:      truncateText(task.Description, 255),
			Description:  s.ticketDescription(st, task),
			IssueType:    "Task",
			AssigneeName: task.Assignee,
			DueDate:      s.taskDueDate(task),
			Labels:       labels,
		})
		if err != nil {
			st.fail(StageCreateTickets, err)
			s.logStep(ctx, st, StageCreateTickets, store.LogFailed, err.Error())
			return
		}

		st.TicketKeys = append(st.TicketKeys, issue.Key)
		st.ActionItems = append(st.ActionItems, actionItem(task, issue.Key))
		s.metrics.RecordTicketCreated()
		st.logf("created ticket %s for %q", issue.Key, task.Description)
	}

	s.logStep(ctx, st, StageCreateTickets, store.LogCompleted,
		fmt.Sprintf("created %d, skipped %d duplicates", len(st.TicketKeys), len(st.SkippedTasks)))
}

// projectLabel turns a free-form project name into a Jira-safe label.
// Labels cannot contain spaces.
func projectLabel(project string) string {
	return strings.ToLower(strings.Join(strings.Fields(project), "-"))
}

func (s *Service) ticketDescription(st *RunState, task extract.Task) string {
	desc := "Task extracted from meeting recording"
	if st.Filename != "" {
		desc += ": " + st.Filename
	}
	mentioned := task.RawAssignee
	if mentioned == "" {
		mentioned = "Unassigned"
	}
	return desc + "\n\nAssignee mentioned: " + mentioned
}

// taskDueDate returns the resolved due date, or the default deadline
// when the task has none.
func (s *Service) taskDueDate(task extract.Task) string {
	if task.DueDate != "" {
		return task.DueDate
	}
	return dates.FormatISO(s.dates.DefaultDeadline())
}

func actionItem(task extract.Task, key string) confluence.ActionItem {
	assignee := task.Assignee
	if assignee == "" {
		assignee = task.RawAssignee
	}
	return confluence.ActionItem{Key: key, Description: task.Description, Assignee: assignee}
}

func actionItemsFromTasks(tasks []extract.Task) []confluence.ActionItem {
	items := make([]confluence.ActionItem, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, actionItem(task, ""))
	}
	return items
}

// stagePublishPage renders and publishes the meeting page. All
// failures here are absorbed by the pipeline.
func (s *Service) stagePublishPage(ctx context.Context, st *RunState) {
	if s.wiki == nil || !s.wiki.IsConfigured() {
		st.logf("wiki not configured, skipping page publication")
		s.logStep(ctx, st, StagePublishPage, store.LogSkipped, "wiki not configured")
		return
	}

	s.logStep(ctx, st, StagePublishPage, store.LogStarted, "")

	summary := st.Summary
	if summary == "" {
		summary = "No summary available"
	}
	items := st.ActionItems
	if len(items) == 0 && len(st.Tasks) > 0 {
		items = actionItemsFromTasks(st.Tasks)
	}

	dateISO := dates.FormatISO(st.MeetingDate)
	pageTitle := st.Title
	if pageTitle == "" {
		pageTitle = "Meeting " + dateISO
	}

	html := confluence.BuildMeetingPage(confluence.MeetingPage{
		Title:          pageTitle,
		Date:           dateISO,
		Summary:        summary,
		ActionItems:    items,
		Transcript:     st.Transcript,
		TrackerBaseURL: s.trackerBaseURL,
	})

	page, err := s.wiki.CreateOrUpdatePage(ctx, pageTitle, html)
	if err != nil {
		st.logf("page publication failed, continuing: %v", err)
		s.logStep(ctx, st, StagePublishPage, store.LogFailed, err.Error())
		return
	}

	st.PageID = page.ID
	st.PageURL = page.URL
	st.logf("page %s: %s", page.Action, page.URL)
	s.logStep(ctx, st, StagePublishPage, store.LogCompleted, page.Action+" "+page.ID)
}

// stagePersist writes the transcription, meeting and task rows. It
// runs after every outcome and persists whatever is available; its
// own failure becomes the run's error.
func (s *Service) stagePersist(ctx context.Context, st *RunState) {
	s.logStep(ctx, st, StagePersist, store.LogStarted, "")

	summary := st.Summary
	if summary == "" {
		summary = truncateText(st.Transcript, 5000)
	}
	transcription := &store.Transcription{Summary: summary}
	if err := s.store.SaveTranscription(ctx, transcription); err != nil {
		st.fail(StagePersist, err)
		s.logStep(ctx, st, StagePersist, store.LogFailed, err.Error())
		return
	}
	st.TranscriptionID = transcription.ID

	meeting := &store.Meeting{
		Date:            st.MeetingDate,
		TranscriptionID: transcription.ID,
		PageID:          st.PageID,
		PageURL:         st.PageURL,
	}
	if err := s.store.SaveMeeting(ctx, meeting); err != nil {
		st.fail(StagePersist, err)
		s.logStep(ctx, st, StagePersist, store.LogFailed, err.Error())
		return
	}
	st.MeetingID = meeting.ID

	for _, task := range st.Tasks {
		if task.Assignee == "" {
			st.logf("not persisting task %q, no resolved assignee", task.Description)
			continue
		}
		member, err := s.store.MemberByName(ctx, task.Assignee)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				st.logf("no member record for %q, task %q not persisted", task.Assignee, task.Description)
				continue
			}
			st.fail(StagePersist, err)
			s.logStep(ctx, st, StagePersist, store.LogFailed, err.Error())
			return
		}

		deadline := s.dates.DefaultDeadline()
		if task.DueDate != "" {
			if parsed, err := time.Parse("2006-01-02", task.DueDate); err == nil {
				deadline = parsed
			}
		}

		row := &store.Task{MemberID: member.ID, Description: task.Description, Deadline: deadline}
		if err := s.store.SaveTask(ctx, row); err != nil {
			st.fail(StagePersist, err)
			s.logStep(ctx, st, StagePersist, store.LogFailed, err.Error())
			return
		}
		st.TaskIDs = append(st.TaskIDs, row.ID)
	}

	st.logf("persisted meeting %d, transcription %d, %d task(s)", st.MeetingID, st.TranscriptionID, len(st.TaskIDs))
	s.logStep(ctx, st, StagePersist, store.LogCompleted,
		fmt.Sprintf("meeting %d, %d tasks", st.MeetingID, len(st.TaskIDs)))
}

// truncateText cuts s to at most limit bytes without splitting a rune.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
