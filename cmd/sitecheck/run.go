package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hazz-dev/sitecheck/internal/config"
	"github.com/hazz-dev/sitecheck/internal/engine"
	"github.com/hazz-dev/sitecheck/internal/metrics"
	"github.com/hazz-dev/sitecheck/internal/notify"
	"github.com/hazz-dev/sitecheck/internal/prober"
	"github.com/hazz-dev/sitecheck/internal/report"
	"github.com/hazz-dev/sitecheck/internal/result"
	"github.com/hazz-dev/sitecheck/internal/storage"
	"github.com/hazz-dev/sitecheck/internal/target"
)

// runFlags holds the command-line values shared by the root command and its
// subcommands.
type runFlags struct {
	file          string
	url           string
	ipRange       string
	timeout       int
	retries       int
	batch         int
	rate          float64
	output        string
	dbPath        string
	noInteractive bool
	verbose       bool
	configPath    string
}

// loadConfig reads the config file and applies every flag the user set.
func loadConfig(cmd *cobra.Command, f *runFlags) (*config.Config, error) {
	flags := cmd.Flags()
	cfg, err := config.LoadOrDefault(f.configPath, flags.Changed("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var o config.Overrides
	if flags.Changed("timeout") {
		o.TimeoutSeconds = &f.timeout
	}
	if flags.Changed("retries") {
		o.Retries = &f.retries
	}
	if flags.Changed("batch") {
		o.BatchSize = &f.batch
	}
	if flags.Changed("rate") {
		o.Rate = &f.rate
	}
	if flags.Changed("output") {
		o.Output = &f.output
	}
	if flags.Changed("db") {
		o.StoragePath = &f.dbPath
	}
	if flags.Changed("no-interactive") {
		interactive := !f.noInteractive
		o.Interactive = &interactive
	}
	if err := o.Apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openSource builds the target source named by exactly one of the source flags.
func openSource(f *runFlags, flags interface{ Changed(string) bool }) (target.Source, func(), error) {
	given := 0
	for _, name := range []string{"file", "url", "ip"} {
		if flags.Changed(name) {
			given++
		}
	}
	switch {
	case given == 0:
		return nil, nil, config.Usagef("Please provide a filename, URL or IP range")
	case given > 1:
		return nil, nil, config.Usagef("Please provide only one of filename, URL or IP range")
	}

	noop := func() {}
	switch {
	case flags.Changed("file"):
		src, err := target.OpenFile(f.file)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, config.Usagef("File does not exist")
		}
		if err != nil {
			return nil, nil, fmt.Errorf("opening target list: %w", err)
		}
		return src, func() { src.Close() }, nil
	case flags.Changed("url"):
		return target.Single(f.url), noop, nil
	default:
		src, err := target.ParseCIDR(f.ipRange)
		if err != nil {
			return nil, nil, config.Usage(err)
		}
		return src, noop, nil
	}
}

// runCheck is the root command: probe every target, then report.
func runCheck(cmd *cobra.Command, f *runFlags) error {
	src, closeSrc, err := openSource(f, cmd.Flags())
	if err != nil {
		return err
	}
	defer closeSrc()

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	logger := newLogger(cmd.ErrOrStderr(), f.verbose)

	collector, err := metrics.New()
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	p, err := prober.New(prober.Options{
		Timeout:   cfg.Probe.Timeout.Duration,
		Attempts:  cfg.Probe.Attempts,
		UserAgent: cfg.Probe.UserAgent,
		Rate:      cfg.Probe.Rate,
		OnAttemptError: func(t string, attempt int, err error) {
			logger.Debug("attempt failed", "target", t, "attempt", attempt, "error", err)
			collector.AttemptFailed(t, attempt, err)
		},
	})
	if err != nil {
		return config.Usage(err)
	}

	report.Banner(out, src.Describe(), cfg.Probe.Timeout.Duration, cfg.Probe.Attempts)

	if cmd.Flags().Changed("url") {
		report.Single(out, f.url, p.Probe(ctx, f.url))
		return nil
	}

	fmt.Fprintf(out, "Total sites to check: %d\n", src.Total())

	bar := newProgress(cmd.ErrOrStderr(), src.Total())
	eng, err := engine.New(p, engine.Options{
		BatchSize:  cfg.Probe.BatchSize,
		OnProgress: bar.update,
		Observer:   collector,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	runID := uuid.NewString()
	started := time.Now()
	logger.Debug("run started", "run_id", runID, "source", src.Describe(), "batch_size", cfg.Probe.BatchSize)
	table, err := eng.Run(ctx, src)
	bar.finish()
	if err != nil {
		return fmt.Errorf("probing %s: %w", src.Describe(), err)
	}
	finished := time.Now()

	g := result.Group(table)
	persistErr := report.WriteJSON(cfg.Report.Output, g)
	if persistErr != nil {
		logger.Error("writing code lookup", "path", cfg.Report.Output, "error", persistErr)
	}

	fmt.Fprintln(out)
	report.Sites(out, table, cfg.Report.TableLimit)
	report.Summary(out, table, g)

	run := storage.Run{
		ID:         runID,
		Source:     src.Describe(),
		Targets:    table.Dispatched(),
		Timeout:    cfg.Probe.Timeout.Duration,
		Attempts:   cfg.Probe.Attempts,
		BatchSize:  cfg.Probe.BatchSize,
		StartedAt:  started,
		FinishedAt: finished,
	}
	storeRun(ctx, cfg, run, table, logger)

	if cfg.Alerts.Webhook.URL != "" {
		n := notify.New(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Timeout.Duration, logger)
		// Errors are logged by the notifier.
		_ = n.RunCompleted(ctx, notify.Run{ID: runID, Input: src.Describe(), Table: table, FinishedAt: finished})
	}

	if cfg.Metrics.Textfile != "" {
		if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Error("exporting metrics", "path", cfg.Metrics.Textfile, "error", err)
		}
	}

	if cfg.Report.Interactive {
		if err := report.Interactive(cmd.InOrStdin(), out, g); err != nil {
			logger.Warn("reading status code prompt", "error", err)
		}
	}

	if persistErr != nil {
		return persistErr
	}
	return nil
}

func storeRun(ctx context.Context, cfg *config.Config, run storage.Run, table *result.Table, logger *slog.Logger) {
	if cfg.Storage.Path == "" {
		return
	}
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		logger.Error("opening history", "path", cfg.Storage.Path, "error", err)
		return
	}
	defer db.Close()

	if _, err := db.InsertRun(ctx, run, table); err != nil {
		logger.Error("storing run", "run_id", run.ID, "error", err)
		return
	}
	logger.Info("run stored", "run_id", run.ID, "path", cfg.Storage.Path)
}

// progress renders "<done>/<total> sites requested" on the error stream.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(w io.Writer, total int) *progress {
	if total <= 0 {
		return &progress{}
	}
	return &progress{bar: progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("sites requested"),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
	)}
}

func (p *progress) update(done, _ int) {
	if p.bar != nil {
		p.bar.Set(done)
	}
}

func (p *progress) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
