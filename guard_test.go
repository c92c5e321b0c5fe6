package meetingflow

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingTranscriber parks TranscribeFile until released, so tests
// can hold a file in flight.
type blockingTranscriber struct {
	started chan string
	release chan struct{}
}

func newBlockingTranscriber() *blockingTranscriber {
	return &blockingTranscriber{
		started: make(chan string, 8),
		release: make(chan struct{}),
	}
}

func (b *blockingTranscriber) Ready() bool { return true }

func (b *blockingTranscriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	b.started <- path
	<-b.release
	return "Alice will finish the report by Friday.", nil
}

type instantTranscriber struct{}

func (instantTranscriber) Ready() bool { return true }

func (instantTranscriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	return "Bob will update the roadmap by tomorrow.", nil
}

func writeRecording(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("fake audio"), 0644))
	return path
}

func TestProcessFileConcurrentDuplicateSkipped(t *testing.T) {
	env := newTestEnv(t)
	transcriber := newBlockingTranscriber()
	env.svc.transcriber = transcriber

	dir := t.TempDir()
	path := writeRecording(t, dir, "meeting.mp4")

	var wg sync.WaitGroup
	wg.Add(1)
	var first *RunResult
	go func() {
		defer wg.Done()
		first = env.svc.ProcessFile(context.Background(), path)
	}()

	<-transcriber.started
	second := env.svc.ProcessFile(context.Background(), path)
	assert.True(t, second.Skipped)
	assert.Equal(t, "meeting.mp4", second.Filename)

	close(transcriber.release)
	wg.Wait()

	assert.False(t, first.Skipped)
	assert.Equal(t, "", first.Err)
	assert.True(t, env.svc.processed("meeting.mp4"))
}

func TestProcessFileSettlesOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.svc.transcriber = nil

	res := env.svc.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "broken.mp4"))

	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "transcriber not available")
	assert.True(t, env.svc.processed("broken.mp4"), "failed files must settle so they are not retried forever")
}

func TestPollCycleProcessesPendingOnly(t *testing.T) {
	env := newTestEnv(t)
	env.svc.transcriber = instantTranscriber{}
	env.svc.recordingsDir = t.TempDir()

	writeRecording(t, env.svc.recordingsDir, "standup.mp4")
	writeRecording(t, env.svc.recordingsDir, "retro.wav")
	writeRecording(t, env.svc.recordingsDir, "notes.txt")

	cycle := env.svc.PollCycle(context.Background())
	assert.False(t, cycle.SkippedCycle)
	assert.Equal(t, 2, cycle.Processed)
	assert.Equal(t, 0, cycle.Failed)
	require.Len(t, cycle.Results, 2)

	// Settled files are not picked up again.
	cycle = env.svc.PollCycle(context.Background())
	assert.Equal(t, 0, cycle.Processed)
	assert.Empty(t, cycle.Results)
}

func TestPollCycleSkippedWhilePreviousRuns(t *testing.T) {
	env := newTestEnv(t)
	env.svc.recordingsDir = t.TempDir()

	env.svc.cycleMu.Lock()
	cycle := env.svc.PollCycle(context.Background())
	env.svc.cycleMu.Unlock()

	assert.True(t, cycle.SkippedCycle)
	assert.Empty(t, cycle.Results)
}

func TestClearProcessedAllowsReprocessing(t *testing.T) {
	env := newTestEnv(t)
	env.svc.transcriber = instantTranscriber{}
	env.svc.recordingsDir = t.TempDir()
	writeRecording(t, env.svc.recordingsDir, "weekly.m4a")

	first := env.svc.PollCycle(context.Background())
	require.Equal(t, 1, first.Processed)

	assert.Equal(t, 1, env.svc.ClearProcessed())

	second := env.svc.PollCycle(context.Background())
	assert.Equal(t, 1, second.Processed)
}

func TestStatusCountsFiles(t *testing.T) {
	env := newTestEnv(t)
	env.svc.transcriber = instantTranscriber{}
	env.svc.recordingsDir = t.TempDir()
	writeRecording(t, env.svc.recordingsDir, "one.mp4")
	writeRecording(t, env.svc.recordingsDir, "two.mp3")

	env.svc.ProcessFile(context.Background(), filepath.Join(env.svc.recordingsDir, "one.mp4"))

	status := env.svc.Status()
	assert.Equal(t, 2, status.TotalFiles)
	assert.Equal(t, 1, status.ProcessedFiles)
	assert.Equal(t, 1, status.PendingFiles)
	assert.Equal(t, 0, status.InFlight)
	assert.Equal(t, 1, status.CacheSize)
}
