package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const summarizeSystemPrompt = `Summarize the meeting in 1-2 sentences. Be direct and concise.`

const titleSystemPrompt = `Extract a concise, descriptive meeting title from the transcript.

RULES:
1. Identify the main project, topic, or theme of the meeting
2. If a project name is mentioned, include it (e.g., "Project Alpha Sprint Planning")
3. If no specific project, use the main topic discussed
4. Keep title under 60 characters
5. Format: "[Project/Topic] - [Meeting Type]" or just "[Main Topic]"
6. Examples: "Project Phoenix - Weekly Sync", "API Integration Review", "Q4 Budget Planning"
7. Return ONLY the title, no explanation`

const projectSystemPrompt = `Extract the project or product name from the meeting discussion.

RULES:
1. Look for explicit project names (e.g., "Project Alpha", "Phoenix App", "Customer Portal")
2. Look for product names being discussed
3. If multiple projects mentioned, return the main one being discussed
4. Return ONLY the project/product name, nothing else
5. If no clear project name, return "NONE"
6. Do NOT make up a project name`

const tasksSystemPrompt = `You are a JSON extraction assistant. Your ONLY job is to extract tasks and return valid JSON.

RULES:
1. Output ONLY valid JSON - no explanations, no markdown, no text before or after
2. Every response must start with { and end with }
3. Use this exact format: {"tasks": [{"title": "task description", "assignee": "person name", "due_date": "YYYY-MM-DD"}]}
4. If no clear assignee, use "Unassigned"
5. If no due date mentioned, use null
6. If no tasks found, return: {"tasks": []}
7. Look for action words like: will, should, needs to, assigned to, responsible for`

// SummarizeMeeting generates a short summary of the transcript.
func (c *Client) SummarizeMeeting(ctx context.Context, transcript string) (string, error) {
	user := fmt.Sprintf("Transcript:\n%s\n\nSummary:", transcript)
	summary, err := c.Complete(ctx, summarizeSystemPrompt, user)
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	slog.Info("generated meeting summary", "chars", len(summary))
	return summary, nil
}

// ExtractTitle derives a meeting title from the transcript. Failures fall
// back to a generic title rather than an error.
func (c *Client) ExtractTitle(ctx context.Context, transcript string) (string, error) {
	user := fmt.Sprintf("Extract a meeting title from this transcript:\n\n%s\n\nMeeting Title:", truncate(transcript, 2000))
	title, err := c.Complete(ctx, titleSystemPrompt, user)
	if err != nil {
		return "", err
	}
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if utf8.RuneCountInString(title) > 80 {
		title = string([]rune(title)[:77]) + "..."
	}
	return title, nil
}

// ExtractProjectName identifies the project under discussion. An empty
// result means no project was identified; that is not an error.
func (c *Client) ExtractProjectName(ctx context.Context, transcript, summary string) (string, error) {
	context := truncate(transcript, 1500)
	if summary != "" {
		context = fmt.Sprintf("Summary: %s\n\nTranscript: %s", summary, truncate(transcript, 1000))
	}
	user := fmt.Sprintf("What project or product is being discussed in this meeting?\n\n%s\n\nProject Name:", context)

	project, err := c.Complete(ctx, projectSystemPrompt, user)
	if err != nil {
		return "", err
	}
	project = strings.Trim(strings.TrimSpace(project), `"'`)

	switch strings.ToUpper(project) {
	case "NONE", "N/A", "NOT FOUND", "UNKNOWN", "":
		slog.Info("no project name identified in transcript")
		return "", nil
	}
	return project, nil
}

// ExtractTasksResponse asks the model for a structured task list and
// returns the raw response text. Parsing and repair happen in the extract
// package so malformed output never surfaces as an error here.
func (c *Client) ExtractTasksResponse(ctx context.Context, transcript, summary string) (string, error) {
	user := fmt.Sprintf("Extract all tasks/action items from this transcript and return ONLY JSON:\n\n%s\n\nRespond with JSON only:", transcript)
	return c.Complete(ctx, tasksSystemPrompt, user)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
