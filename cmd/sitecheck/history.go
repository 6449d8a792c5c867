package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hazz-dev/sitecheck/internal/config"
	"github.com/hazz-dev/sitecheck/internal/storage"
)

type historyStore interface {
	ListRuns(ctx context.Context, limit, offset int) ([]storage.Run, int, error)
}

func historyCmd(f *runFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs, newest first",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return config.Usagef("Limit must be a positive integer")
			}
			db, _, err := openHistory(cmd, f)
			if err != nil {
				return err
			}
			defer db.Close()
			return executeHistory(cmd, db, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}

// openHistory loads the config and opens the run history database it names.
func openHistory(cmd *cobra.Command, f *runFlags) (*storage.DB, *config.Config, error) {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Path == "" {
		return nil, nil, config.Usagef("No history database: set storage.path in %s or pass --db", f.configPath)
	}
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return db, cfg, nil
}

func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return config.Usagef("unexpected argument %q", args[0])
	}
	return nil
}

func executeHistory(cmd *cobra.Command, db historyStore, limit int) error {
	out := cmd.OutOrStdout()
	runs, total, err := db.ListRuns(cmd.Context(), limit, 0)
	if err != nil {
		return fmt.Errorf("querying runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No run history. Run 'sitecheck -f <file> --db <path>' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSOURCE\tSITES\tBATCH\tDURATION\tSTARTED")
	for _, r := range runs {
		batch := "sequential"
		if r.BatchSize > 0 {
			batch = fmt.Sprint(r.BatchSize)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID,
			r.Source,
			r.Targets,
			batch,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			humanize.Time(r.StartedAt),
		)
	}
	w.Flush()

	if total > len(runs) {
		fmt.Fprintf(out, "\nShowing %d of %d runs.\n", len(runs), total)
	}
	return nil
}
