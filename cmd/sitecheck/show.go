package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hazz-dev/sitecheck/internal/config"
	"github.com/hazz-dev/sitecheck/internal/report"
	"github.com/hazz-dev/sitecheck/internal/result"
	"github.com/hazz-dev/sitecheck/internal/storage"
)

type showStore interface {
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	LatestRun(ctx context.Context) (*storage.Run, error)
	RunTable(ctx context.Context, id string) (*result.Table, error)
}

func showCmd(f *runFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id|latest> [code]",
		Short: "Print the final report of a stored run, or its sites for one code",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return config.Usagef("show takes a run ID and an optional status code")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openHistory(cmd, f)
			if err != nil {
				return err
			}
			defer db.Close()
			return executeShow(cmd, db, args)
		},
	}
}

func executeShow(cmd *cobra.Command, db showStore, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var run *storage.Run
	var err error
	if args[0] == "latest" {
		run, err = db.LatestRun(ctx)
		if err == nil && run == nil {
			err = storage.ErrNotFound
		}
	} else {
		run, err = db.GetRun(ctx, args[0])
	}
	if err != nil {
		return fmt.Errorf("loading run %q: %w", args[0], err)
	}

	table, err := db.RunTable(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("loading results of run %q: %w", run.ID, err)
	}
	g := result.Group(table)

	if len(args) == 2 {
		code := args[1]
		sites, ok := g.Lookup(code)
		if !ok {
			fmt.Fprintln(out, "No sites returned that status code")
			return nil
		}
		fmt.Fprintf(out, "Sites that returned status code %s:\n", code)
		for _, s := range sites {
			fmt.Fprintln(out, s)
		}
		return nil
	}

	fmt.Fprintf(out, "Run %s: %s, started %s\n", run.ID, run.Source, humanize.Time(run.StartedAt))
	report.Summary(out, table, g)
	return nil
}
