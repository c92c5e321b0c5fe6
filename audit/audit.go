// Package audit writes a per-run decision log to disk. Every pipeline
// run gets its own file recording which stages ran, what they decided
// and why, so a skipped ticket or a failed stage can be explained
// after the fact.
package audit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var auditSync = sync.Mutex{}

type Config struct {
	Directory         string
	RetentionDuration time.Duration
	MaxRunFiles       int
}

const (
	defaultRetentionDuration = 7 * 24 * time.Hour
	defaultMaxRunFiles       = 50
)

// Logger creates run files in a directory and prunes old ones.
type Logger struct {
	config  Config
	counter int64
}

func NewLogger(config ...Config) *Logger {
	cfg := Config{
		Directory:         filepath.Join(os.TempDir(), "meetingflow-audit"),
		RetentionDuration: defaultRetentionDuration,
		MaxRunFiles:       defaultMaxRunFiles,
	}

	if len(config) > 0 {
		if config[0].Directory != "" {
			cfg.Directory = config[0].Directory
		}
		if config[0].RetentionDuration > 0 {
			cfg.RetentionDuration = config[0].RetentionDuration
		}
		if config[0].MaxRunFiles > 0 {
			cfg.MaxRunFiles = config[0].MaxRunFiles
		}
	}

	os.MkdirAll(cfg.Directory, 0755)

	return &Logger{config: cfg}
}

// NewRun opens a fresh run file. Source identifies what triggered the
// run, usually the recording path.
func (l *Logger) NewRun(source string) *Run {
	timestamp := time.Now().Format("20060102150405")
	counter := atomic.AddInt64(&l.counter, 1)
	path := filepath.Join(l.config.Directory, fmt.Sprintf("run-%s.%03d.txt", timestamp, counter))

	l.cleanup()

	r := &Run{startTime: time.Now(), filepath: path}
	r.write(func(w io.Writer) {
		fmt.Fprintf(w, "====> [%s] run started, source: %s\n", r.startTime.Format("15:04:05"), source)
	})
	return r
}

func (l *Logger) cleanup() {
	entries, err := os.ReadDir(l.config.Directory)
	if err != nil {
		slog.Error("failed to read audit directory", "error", err)
		return
	}

	var runFiles []struct {
		path    string
		modTime time.Time
	}

	cutoffTime := time.Now().Add(-l.config.RetentionDuration)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "run-") || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runFiles = append(runFiles, struct {
			path    string
			modTime time.Time
		}{
			path:    filepath.Join(l.config.Directory, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(runFiles, func(i, j int) bool {
		return runFiles[i].modTime.Before(runFiles[j].modTime)
	})

	if l.config.RetentionDuration > 0 {
		for _, file := range runFiles {
			if file.modTime.Before(cutoffTime) {
				if err := os.Remove(file.path); err != nil {
					slog.Error("failed to remove old audit file", "file", file.path, "error", err)
				}
			}
		}
	}

	if l.config.MaxRunFiles > 0 && len(runFiles) > l.config.MaxRunFiles {
		filesToRemove := len(runFiles) - l.config.MaxRunFiles
		for i := 0; i < filesToRemove && i < len(runFiles); i++ {
			if err := os.Remove(runFiles[i].path); err != nil {
				slog.Error("failed to remove excess audit file", "file", runFiles[i].path, "error", err)
			}
		}
	}
}

// Run is the decision log of one pipeline run.
type Run struct {
	startTime time.Time
	filepath  string
}

func (r *Run) Filepath() string {
	return r.filepath
}

func (r *Run) write(fn func(io.Writer)) {
	auditSync.Lock()
	defer auditSync.Unlock()

	file, err := os.OpenFile(r.filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("failed to open audit file", "file", r.filepath, "error", err)
		return
	}
	defer file.Close()

	fn(file)
	file.Sync()
}

// Step records one stage decision.
func (r *Run) Step(stage, status, detail string) {
	r.write(func(w io.Writer) {
		if detail == "" {
			fmt.Fprintf(w, "[%s] %s %s\n", time.Now().Format("15:04:05"), stage, status)
			return
		}
		fmt.Fprintf(w, "[%s] %s %s: %s\n", time.Now().Format("15:04:05"), stage, status, detail)
	})
}

// Close writes the final outcome line.
func (r *Run) Close(runErr error) {
	elapsed := time.Since(r.startTime).Round(time.Millisecond)
	r.write(func(w io.Writer) {
		if runErr != nil {
			fmt.Fprintf(w, "<==== [%s] run failed after %s: %v\n", time.Now().Format("15:04:05"), elapsed, runErr)
			return
		}
		fmt.Fprintf(w, "<==== [%s] run completed in %s\n", time.Now().Format("15:04:05"), elapsed)
	})
}
