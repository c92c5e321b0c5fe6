// Package meetingflow turns meeting recordings and transcripts into
// summarized, ticketed and published action items. The Service wires
// the LLM, ticket tracker, wiki, transcriber and store behind one
// pipeline with a concurrency guard for the directory watcher.
package meetingflow

import (
	"context"
	"sync"
	"time"

	"github.com/nexxia-ai/meetingflow/ai"
	"github.com/nexxia-ai/meetingflow/audit"
	"github.com/nexxia-ai/meetingflow/confluence"
	"github.com/nexxia-ai/meetingflow/dates"
	"github.com/nexxia-ai/meetingflow/extract"
	"github.com/nexxia-ai/meetingflow/jira"
	"github.com/nexxia-ai/meetingflow/metrics"
	"github.com/nexxia-ai/meetingflow/roster"
	"github.com/nexxia-ai/meetingflow/store"
	"github.com/nexxia-ai/meetingflow/transcribe"
)

// LLM is the language model surface the pipeline needs.
type LLM interface {
	IsConfigured() bool
	SummarizeMeeting(ctx context.Context, transcript string) (string, error)
	ExtractTitle(ctx context.Context, transcript string) (string, error)
	ExtractProjectName(ctx context.Context, transcript, summary string) (string, error)
	ExtractTasksResponse(ctx context.Context, transcript, summary string) (string, error)
}

// Tracker creates tickets for action items and answers duplicate
// checks.
type Tracker interface {
	IsConfigured() bool
	CreateIssue(ctx context.Context, req jira.CreateIssueRequest) (*jira.Issue, error)
	FindDuplicate(ctx context.Context, summary, assigneeName string) (string, bool, error)
}

// Wiki publishes meeting pages.
type Wiki interface {
	IsConfigured() bool
	CreateOrUpdatePage(ctx context.Context, title, html string) (*confluence.Page, error)
}

// Transcriber converts a recording file to text.
type Transcriber interface {
	Ready() bool
	TranscribeFile(ctx context.Context, path string) (string, error)
}

// The concrete clients satisfy the collaborator interfaces.
var (
	_ LLM         = (*ai.Client)(nil)
	_ Tracker     = (*jira.Client)(nil)
	_ Wiki        = (*confluence.Client)(nil)
	_ Transcriber = (*transcribe.Transcriber)(nil)
)

// Options configures a Service. Zero-value collaborators get working
// defaults where possible; nil LLM, Tracker, Wiki or Transcriber are
// treated as unconfigured and their stages are skipped.
type Options struct {
	LLM         LLM
	Tracker     Tracker
	Wiki        Wiki
	Transcriber Transcriber
	Store       store.Store

	Roster  *roster.Registry
	Dates   *dates.Resolver
	Metrics *metrics.Collector
	Audit   *audit.Logger

	// TrackerBaseURL builds ticket links on published pages.
	TrackerBaseURL string
	RecordingsDir  string
}

// Service is the long-lived registry of collaborators plus the
// in-flight and settled file sets. Construct one at startup and share
// it between the watcher and any ad-hoc triggers.
type Service struct {
	llm         LLM
	tracker     Tracker
	wiki        Wiki
	transcriber Transcriber
	store       store.Store

	roster    *roster.Registry
	dates     *dates.Resolver
	extractor *extract.Extractor
	metrics   *metrics.Collector
	audit     *audit.Logger

	trackerBaseURL string
	recordingsDir  string

	cycleMu  sync.Mutex
	guardMu  sync.Mutex
	inFlight map[string]bool
	settled  map[string]bool
}

func NewService(opts Options) *Service {
	if opts.Roster == nil {
		opts.Roster = roster.NewDefaultRegistry()
	}
	if opts.Dates == nil {
		opts.Dates = dates.NewResolver()
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewLogger()
	}
	if opts.RecordingsDir == "" {
		opts.RecordingsDir = "./recordings"
	}

	return &Service{
		llm:            opts.LLM,
		tracker:        opts.Tracker,
		wiki:           opts.Wiki,
		transcriber:    opts.Transcriber,
		store:          opts.Store,
		roster:         opts.Roster,
		dates:          opts.Dates,
		extractor:      extract.NewExtractor(opts.Roster, opts.Dates),
		metrics:        opts.Metrics,
		audit:          opts.Audit,
		trackerBaseURL: opts.TrackerBaseURL,
		recordingsDir:  opts.RecordingsDir,
		inFlight:       make(map[string]bool),
		settled:        make(map[string]bool),
	}
}

// Metrics exposes the service's collector for the metrics endpoint.
func (s *Service) Metrics() *metrics.Collector {
	return s.metrics
}

// Store exposes the underlying store, mainly for status commands.
func (s *Service) Store() store.Store {
	return s.store
}

// ProcessMeeting runs the full pipeline for one transcript. A zero
// meetingDate means today. The returned result is always non-nil,
// with Err set when the run failed.
func (s *Service) ProcessMeeting(ctx context.Context, transcript string, meetingDate time.Time, filename string) *RunResult {
	st := &RunState{
		Transcript:  transcript,
		MeetingDate: meetingDate,
		Filename:    filename,
	}
	return s.runPipeline(ctx, st)
}
