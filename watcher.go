package meetingflow

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nexxia-ai/meetingflow/transcribe"
)

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	// SkippedCycle is true when the previous cycle was still running
	// and this one was dropped, not queued.
	SkippedCycle bool

	Processed int
	Failed    int
	Results   []*RunResult
}

// PollCycle scans the recordings directory once and processes every
// pending file. If the previous cycle is still running the cycle is
// skipped and counted, never queued.
func (s *Service) PollCycle(ctx context.Context) CycleResult {
	if !s.cycleMu.TryLock() {
		slog.Warn("skipping poll cycle, previous cycle still running")
		s.metrics.RecordPollSkipped()
		return CycleResult{SkippedCycle: true}
	}
	defer s.cycleMu.Unlock()

	s.metrics.RecordPollCycle()

	var cycle CycleResult
	for _, path := range s.pendingRecordings() {
		result := s.ProcessFile(ctx, path)
		cycle.Results = append(cycle.Results, result)
		if result.Skipped {
			continue
		}
		if result.Failed() {
			cycle.Failed++
		} else {
			cycle.Processed++
		}
	}

	if len(cycle.Results) > 0 {
		slog.Info("poll cycle complete", "processed", cycle.Processed, "failed", cycle.Failed)
	}
	return cycle
}

// listRecordings returns every supported recording in the directory.
func (s *Service) listRecordings() []string {
	entries, err := os.ReadDir(s.recordingsDir)
	if err != nil {
		slog.Error("could not read recordings directory", "dir", s.recordingsDir, "error", err)
		return nil
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !transcribe.IsSupportedFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(s.recordingsDir, entry.Name()))
	}
	sort.Strings(paths)
	return paths
}

// pendingRecordings lists supported files that have not settled yet.
func (s *Service) pendingRecordings() []string {
	var pending []string
	for _, path := range s.listRecordings() {
		if !s.processed(filepath.Base(path)) {
			pending = append(pending, path)
		}
	}
	return pending
}

// Watch polls the recordings directory until the context is
// cancelled. The interval is fixed and independent of how long each
// cycle takes; overlong cycles cause skips, not queueing.
func (s *Service) Watch(ctx context.Context, interval time.Duration) error {
	if err := os.MkdirAll(s.recordingsDir, 0755); err != nil {
		return err
	}
	slog.Info("watching for recordings", "dir", s.recordingsDir, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// One immediate cycle so startup does not wait a full interval.
	s.PollCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			s.PollCycle(ctx)
		}
	}
}
