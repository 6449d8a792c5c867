package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/sitecheck/internal/config"
	"github.com/hazz-dev/sitecheck/internal/report"
	"github.com/hazz-dev/sitecheck/internal/version"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(args []string, in io.Reader, out, errOut io.Writer) int {
	root, state := rootCmd()
	root.SetArgs(normalizeArgs(args))
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	cmd, err := root.ExecuteC()
	if state.helpShown {
		return 1
	}
	if err == nil {
		return 0
	}

	var persistErr *report.PersistenceError
	switch {
	case errors.Is(err, config.ErrUsage):
		fmt.Fprintf(out, "Error::%s\n", err)
		fmt.Fprint(out, cmd.UsageString())
	case errors.As(err, &persistErr):
		// Already logged when it happened; the report was still printed.
	default:
		fmt.Fprintf(errOut, "Error: %v\n", err)
	}
	return 1
}

// normalizeArgs rewrites the single-dash -ip spelling, which pflag would
// read as the shorthand cluster -i -p.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		switch {
		case a == "-ip":
			a = "--ip"
		case strings.HasPrefix(a, "-ip="):
			a = "-" + a
		}
		out[i] = a
	}
	return out
}

type rootState struct {
	helpShown bool
}

func rootCmd() (*cobra.Command, *rootState) {
	state := &rootState{}
	flags := &runFlags{}

	root := &cobra.Command{
		Use:   "sitecheck (-f <file> | -u <url> | -ip <cidr>) [-t <timeout>] [-r <retries>] [-b <batch size>]",
		Short: "Check the HTTP response code of many sites in bounded batches",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return config.Usagef("unexpected argument %q", args[0])
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, flags)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return config.Usage(err)
	})
	root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		state.helpShown = true
		fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
	})

	f := root.Flags()
	f.StringVarP(&flags.file, "file", "f", "", "newline-delimited list of sites to check")
	f.StringVarP(&flags.url, "url", "u", "", "single site to check")
	f.StringVar(&flags.ipRange, "ip", "", "CIDR range whose hosts are checked over http:// (also -ip)")
	f.IntVarP(&flags.timeout, "timeout", "t", 1, "per-attempt timeout in seconds")
	f.IntVarP(&flags.retries, "retries", "r", 1, "attempts per site")
	f.IntVarP(&flags.batch, "batch", "b", 0, "check sites concurrently in batches of this size")
	f.Float64Var(&flags.rate, "rate", 0, "maximum requests per second, 0 for unlimited")
	f.StringVarP(&flags.output, "output", "o", "", "code lookup file (default site_code_lookup.json)")
	f.BoolVar(&flags.noInteractive, "no-interactive", false, "skip the status code prompt")

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.DefaultPath, "config file path")
	pf.StringVar(&flags.dbPath, "db", "", "run history database (overrides storage.path)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging, including failed attempts")

	root.AddCommand(versionCmd())
	root.AddCommand(historyCmd(flags))
	root.AddCommand(showCmd(flags))
	root.AddCommand(serveCmd(flags))

	return root, state
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sitecheck %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
