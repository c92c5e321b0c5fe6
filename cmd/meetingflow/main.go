// Command meetingflow watches a directory of meeting recordings and
// turns each one into a summary, tracker tickets and a wiki page.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexxia-ai/meetingflow"
	"github.com/nexxia-ai/meetingflow/ai"
	"github.com/nexxia-ai/meetingflow/audit"
	"github.com/nexxia-ai/meetingflow/config"
	"github.com/nexxia-ai/meetingflow/confluence"
	"github.com/nexxia-ai/meetingflow/dates"
	"github.com/nexxia-ai/meetingflow/jira"
	"github.com/nexxia-ai/meetingflow/roster"
	"github.com/nexxia-ai/meetingflow/store"
	"github.com/nexxia-ai/meetingflow/transcribe"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	envFile    string
	verbose    bool

	cfg     *config.Config
	svc     *meetingflow.Service
	cleanup func()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "meetingflow",
		Short: "Turn meeting recordings into summaries, tickets and wiki pages",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.cleanup != nil {
				a.cleanup()
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "path to .env file with secrets")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newProcessCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newClearCacheCmd(a))
	return root
}

// setup loads configuration and wires the service. Collaborators with
// missing credentials stay unconfigured and their stages are skipped.
func (a *app) setup(ctx context.Context) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Missing .env is fine; the environment may already be set.
	if err := config.LoadEnvFile(a.envFile); err == nil {
		slog.Debug("loaded env file", "path", a.envFile)
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	a.cleanup = cleanup

	reg := roster.NewRegistry(cfg.Roster.Members...)
	if len(cfg.Roster.Members) == 0 {
		reg = roster.NewDefaultRegistry()
	}
	for alias, member := range cfg.Roster.Aliases {
		reg.AddAlias(member, alias)
	}

	a.svc = meetingflow.NewService(meetingflow.Options{
		LLM:            ai.NewClient(cfg.LLM.Model, cfg.LLM.APIKey, cfg.LLM.BaseURL),
		Tracker:        jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken, cfg.Jira.ProjectKey),
		Wiki:           confluence.NewClient(cfg.Confluence.BaseURL, cfg.Confluence.Email, cfg.Confluence.APIToken, cfg.Confluence.SpaceKey),
		Transcriber:    transcribe.New(cfg.Transcribe.APIKey),
		Store:          st,
		Roster:         reg,
		Dates:          dates.NewResolver(),
		Audit:          audit.NewLogger(audit.Config{Directory: cfg.AuditDir}),
		TrackerBaseURL: cfg.Jira.BaseURL,
		RecordingsDir:  cfg.RecordingsDir,
	})
	return nil
}

// buildStore connects to Postgres when a database URL is configured,
// otherwise falls back to the in-memory store.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.Database.URL == "" {
		mem := store.NewMemoryStore()
		for _, name := range cfg.Roster.Members {
			mem.AddMember(name, "Team Member")
		}
		slog.Info("no database configured, using in-memory store")
		return mem, func() {}, nil
	}

	pg, err := store.NewPGStore(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	for _, name := range cfg.Roster.Members {
		if _, err := pg.AddMember(ctx, name, "Team Member"); err != nil {
			slog.Warn("could not seed member", "name", name, "error", err)
		}
	}
	return pg, pg.Close, nil
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the recordings directory and process new files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metricsServer := &http.Server{
				Addr:    a.cfg.MetricsAddr,
				Handler: a.svc.Metrics().Handler(),
			}
			go func() {
				slog.Info("metrics listening", "addr", a.cfg.MetricsAddr)
				if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("metrics server failed", "error", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				metricsServer.Shutdown(shutdownCtx)
			}()

			err := a.svc.Watch(ctx, a.cfg.PollInterval.Std())
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

func newProcessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file>",
		Short: "Process a single recording file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !transcribe.IsSupportedFile(path) {
				return fmt.Errorf("unsupported file type %s, supported: %s",
					path, strings.Join(transcribe.SupportedExtensions(), ", "))
			}

			result := a.svc.ProcessFile(cmd.Context(), path)
			printResult(cmd, result)
			if result.Failed() {
				return fmt.Errorf("processing failed: %s", result.Err)
			}
			return nil
		},
	}
}

func printResult(cmd *cobra.Command, result *meetingflow.RunResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:    %s\n", result.Filename)
	if result.Title != "" {
		fmt.Fprintf(out, "Title:   %s\n", result.Title)
	}
	if result.Summary != "" {
		fmt.Fprintf(out, "Summary: %s\n", result.Summary)
	}
	fmt.Fprintf(out, "Tasks:   %d (method %s)\n", len(result.Tasks), result.Method)
	for i, task := range result.Tasks {
		due := task.DueDate
		if due == "" {
			due = "default"
		}
		assignee := task.Assignee
		if assignee == "" {
			assignee = "unassigned"
		}
		fmt.Fprintf(out, "  %d. %s (%s, due %s)\n", i+1, task.Description, assignee, due)
	}
	if len(result.TicketKeys) > 0 {
		fmt.Fprintf(out, "Tickets: %s\n", strings.Join(result.TicketKeys, ", "))
	}
	for _, skipped := range result.SkippedTasks {
		fmt.Fprintf(out, "Duplicate of %s: %s\n", skipped.ExistingKey, skipped.Description)
	}
	if result.PageURL != "" {
		fmt.Fprintf(out, "Page:    %s\n", result.PageURL)
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the recordings directory and processing cache state",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := a.svc.Status()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recordings dir: %s\n", status.RecordingsDir)
			fmt.Fprintf(out, "Total files:    %d\n", status.TotalFiles)
			fmt.Fprintf(out, "Processed:      %d\n", status.ProcessedFiles)
			fmt.Fprintf(out, "Pending:        %d\n", status.PendingFiles)
			fmt.Fprintf(out, "In flight:      %d\n", status.InFlight)
			fmt.Fprintf(out, "Cache entries:  %d\n", status.CacheSize)
			return nil
		},
	}
}

func newClearCacheCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Forget processed files so they are picked up again",
		RunE: func(cmd *cobra.Command, args []string) error {
			count := a.svc.ClearProcessed()
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cache entries\n", count)
			return nil
		},
	}
}
