package meetingflow

import (
	"context"
	"path/filepath"

	"log/slog"
)

// ProcessFile runs the pipeline for one recording file, guarded
// against concurrent attempts on the same file. A second call while
// the first is still running returns immediately with Skipped set and
// does not invoke the pipeline. The file is marked settled afterwards
// whether the run succeeded or failed, so a permanently broken
// recording cannot loop forever; ClearProcessed resets that.
func (s *Service) ProcessFile(ctx context.Context, path string) *RunResult {
	name := filepath.Base(path)

	s.guardMu.Lock()
	if s.inFlight[name] {
		s.guardMu.Unlock()
		slog.Info("skipping file, already being processed", "file", name)
		return &RunResult{
			Filename: name,
			Skipped:  true,
			Log:      []string{"skip: already processing"},
		}
	}
	s.inFlight[name] = true
	s.guardMu.Unlock()

	defer func() {
		s.guardMu.Lock()
		delete(s.inFlight, name)
		s.settled[name] = true
		s.guardMu.Unlock()
	}()

	st := &RunState{
		Filename: name,
		FilePath: path,
	}
	return s.runPipeline(ctx, st)
}

// processed reports whether a file has settled.
func (s *Service) processed(name string) bool {
	s.guardMu.Lock()
	defer s.guardMu.Unlock()
	return s.settled[name]
}

// ClearProcessed forgets all settled files so they are picked up
// again on the next poll. Returns the number of entries cleared.
func (s *Service) ClearProcessed() int {
	s.guardMu.Lock()
	defer s.guardMu.Unlock()
	count := len(s.settled)
	s.settled = make(map[string]bool)
	slog.Info("cleared processed file cache", "entries", count)
	return count
}

// Status describes the recordings directory and guard state.
type Status struct {
	RecordingsDir  string
	TotalFiles     int
	ProcessedFiles int
	PendingFiles   int
	InFlight       int
	CacheSize      int
}

func (s *Service) Status() Status {
	status := Status{RecordingsDir: s.recordingsDir}

	for _, path := range s.listRecordings() {
		status.TotalFiles++
		if s.processed(filepath.Base(path)) {
			status.ProcessedFiles++
		} else {
			status.PendingFiles++
		}
	}

	s.guardMu.Lock()
	status.InFlight = len(s.inFlight)
	status.CacheSize = len(s.settled)
	s.guardMu.Unlock()
	return status
}
