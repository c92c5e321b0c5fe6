// Package extract turns LLM output and raw meeting text into a normalized
// task list. Strategies are tried in order until one yields tasks: a
// structured JSON parse with repair heuristics, then regular-expression
// matching over the summary and transcript, then an empty result.
package extract

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nexxia-ai/meetingflow/dates"
	"github.com/nexxia-ai/meetingflow/roster"
)

// Method tags how a task list was obtained.
type Method string

const (
	MethodStructured       Method = "structured"
	MethodStructuredRepair Method = "structured-repair"
	MethodTextPattern      Method = "text-pattern"
	MethodNone             Method = "none"
)

// RawTask is a candidate task before entity and date resolution.
type RawTask struct {
	Description string
	Assignee    string
	DueDate     string
}

// Task is a resolved task. Assignee is a canonical roster member or empty;
// DueDate is an ISO date or empty when unresolved (callers apply the default
// deadline). The Raw fields carry provenance.
type Task struct {
	Description string
	Assignee    string
	DueDate     string
	RawAssignee string
	RawDueDate  string
}

// Result is the outcome of one extraction run.
type Result struct {
	Tasks  []Task
	Raw    []RawTask
	Method Method
}

const (
	maxTasks          = 20
	minDescriptionLen = 4
)

// Extractor wires the cascade to the roster and date resolvers.
type Extractor struct {
	Roster *roster.Registry
	Dates  *dates.Resolver
}

func NewExtractor(r *roster.Registry, d *dates.Resolver) *Extractor {
	return &Extractor{Roster: r, Dates: d}
}

// Extract runs the cascade. llmResponse may be empty or malformed; neither
// is an error. A run that finds nothing returns MethodNone with no tasks.
func (e *Extractor) Extract(transcript, summary, llmResponse string) Result {
	raw, method := e.candidates(transcript, summary, llmResponse)

	tasks := make([]Task, 0, len(raw))
	for _, r := range raw {
		if t, ok := e.normalize(r); ok {
			tasks = append(tasks, t)
		}
	}

	if len(tasks) < len(raw) {
		slog.Debug("dropped invalid tasks", "kept", len(tasks), "candidates", len(raw))
	}

	return Result{Tasks: tasks, Raw: raw, Method: method}
}

// candidates returns raw tasks from the first strategy that produces any.
func (e *Extractor) candidates(transcript, summary, llmResponse string) ([]RawTask, Method) {
	if llmResponse != "" {
		if tasks, repaired, ok := parseStructured(llmResponse); ok && len(tasks) > 0 {
			method := MethodStructured
			if repaired {
				method = MethodStructuredRepair
			}
			slog.Info("extracted tasks from structured response", "count", len(tasks), "repaired", repaired)
			return tasks, method
		}
	}

	if tasks := matchTextPatterns(summary); len(tasks) > 0 {
		slog.Info("extracted tasks from summary patterns", "count", len(tasks))
		return tasks, MethodTextPattern
	}
	if tasks := matchTextPatterns(transcript); len(tasks) > 0 {
		slog.Info("extracted tasks from transcript patterns", "count", len(tasks))
		return tasks, MethodTextPattern
	}

	return nil, MethodNone
}

// normalize resolves the assignee against the roster and the due date
// against the calendar. Descriptions shorter than the minimum after
// trimming are dropped.
func (e *Extractor) normalize(r RawTask) (Task, bool) {
	desc := strings.TrimSpace(r.Description)
	if len(desc) < minDescriptionLen {
		return Task{}, false
	}

	t := Task{
		Description: desc,
		RawAssignee: r.Assignee,
		RawDueDate:  r.DueDate,
	}

	if name, ok := e.Roster.Resolve(r.Assignee); ok {
		t.Assignee = name
	}

	if d, ok := e.Dates.Resolve(r.DueDate); ok {
		t.DueDate = dates.FormatISO(d)
	}

	return t, true
}

// wireTask accepts both the title and description keys the model has been
// seen using.
type wireTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	DueDate     string `json:"due_date"`
	Deadline    string `json:"deadline"`
}

type wireEnvelope struct {
	Tasks []wireTask `json:"tasks"`
}

func (w wireTask) toRaw() RawTask {
	desc := w.Description
	if desc == "" {
		desc = w.Title
	}
	due := w.DueDate
	if due == "" {
		due = w.Deadline
	}
	return RawTask{Description: desc, Assignee: w.Assignee, DueDate: due}
}

// parseStructured parses an LLM response as {"tasks": [...]}. On parse
// failure it applies repair heuristics in order, re-parsing after each:
// strip markdown code fences, replace single quotes with double quotes,
// strip trailing commas. A bare task array is wrapped in an envelope.
func parseStructured(raw string) (tasks []RawTask, repaired bool, ok bool) {
	text := stripFences(raw)

	if tasks, ok := tryParse(text); ok {
		return tasks, text != strings.TrimSpace(raw), true
	}

	text = strings.ReplaceAll(text, "'", `"`)
	if tasks, ok := tryParse(text); ok {
		return tasks, true, true
	}

	text = stripTrailingCommas(text)
	if tasks, ok := tryParse(text); ok {
		return tasks, true, true
	}

	slog.Debug("all structured parse strategies failed", "prefix", prefix(raw, 100))
	return nil, false, false
}

func tryParse(text string) ([]RawTask, bool) {
	var env wireEnvelope
	if err := json.Unmarshal([]byte(text), &env); err == nil && env.Tasks != nil {
		return toRawTasks(env.Tasks), true
	}

	// A parseable object without a tasks key, or a bare array.
	var bare []wireTask
	if err := json.Unmarshal([]byte(text), &bare); err == nil {
		return toRawTasks(bare), true
	}
	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &bare); err == nil {
			return toRawTasks(bare), true
		}
	}

	return nil, false
}

func toRawTasks(wire []wireTask) []RawTask {
	out := make([]RawTask, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toRaw())
	}
	return out
}

// stripFences removes markdown code fences and trims to the outermost JSON
// value boundaries.
func stripFences(text string) string {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if strings.Contains(text, "```") {
		parts := strings.Split(text, "```")
		if len(parts) >= 2 {
			text = parts[1]
		}
	}
	text = strings.TrimSpace(text)

	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "}]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return text
}

func stripTrailingCommas(text string) string {
	text = trailingCommaObject.ReplaceAllString(text, "}")
	return trailingCommaArray.ReplaceAllString(text, "]")
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
