// Package report renders run results for humans and writes the code lookup file.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/hazz-dev/sitecheck/internal/result"
)

const siteWidth = 80

var rule = strings.Repeat("=", siteWidth)

var (
	successColor  = color.New(color.FgGreen)
	redirectColor = color.New(color.FgCyan)
	clientColor   = color.New(color.FgYellow)
	serverColor   = color.New(color.FgRed)
	failureColor  = color.New(color.FgHiRed, color.Bold)
	headingColor  = color.New(color.Bold)
)

// PersistenceError reports a lookup file that could not be written.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// WriteJSON writes the grouping to path as an indented JSON object,
// replacing any existing file.
func WriteJSON(path string, g *result.Grouped) error {
	data, err := json.MarshalIndent(g, "", "    ")
	if err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}

// Banner prints the run header.
func Banner(w io.Writer, source string, timeout time.Duration, attempts int) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Checking response(s) for %s with timeout %s and retries %d\n", source, timeout, attempts)
	fmt.Fprintln(w, rule)
}

// Sites prints one line per target unless the table has more than limit
// entries. It reports whether the table was printed.
func Sites(w io.Writer, t *result.Table, limit int) bool {
	if t.Len() > limit {
		return false
	}
	siteHeader(w)
	for _, e := range t.Entries() {
		siteLine(w, e.Target, e.Result)
	}
	return true
}

// Single prints the one-line table of the single-URL run.
func Single(w io.Writer, target string, r result.Result) {
	siteHeader(w)
	siteLine(w, target, r)
}

func siteHeader(w io.Writer) {
	fmt.Fprintf(w, "%-*s Status Code\n", siteWidth, "Site")
	fmt.Fprintln(w, strings.Repeat("-", siteWidth))
}

func siteLine(w io.Writer, target string, r result.Result) {
	fmt.Fprintf(w, "%-*s: %s\n", siteWidth, target, colorize(r, fmt.Sprintf("%-5s", r)))
}

// Summary prints the final report: the number of sites checked and the size
// of every result group, in group order.
func Summary(w io.Writer, t *result.Table, g *result.Grouped) {
	fmt.Fprintln(w, rule)
	headingColor.Fprintln(w, "Final Report")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d sites checked\n", t.Len())
	for _, k := range g.Keys() {
		fmt.Fprintf(w, "%d sites returned status code %s\n", len(g.Sites(k)), colorize(k, k.String()))
	}
	fmt.Fprintln(w, rule)
}

func colorize(r result.Result, s string) string {
	switch code := r.StatusCode(); {
	case r.IsFailure():
		return failureColor.Sprint(s)
	case code < 300:
		return successColor.Sprint(s)
	case code < 400:
		return redirectColor.Sprint(s)
	case code < 500:
		return clientColor.Sprint(s)
	default:
		return serverColor.Sprint(s)
	}
}
