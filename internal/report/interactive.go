package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/hazz-dev/sitecheck/internal/result"
)

// Prompt is shown before every lookup.
const Prompt = "Enter a status code to see the sites that returned that code (or q to quit): "

// Interactive answers lookups by status code read line by line from in until
// the user enters q or in is exhausted.
func Interactive(in io.Reader, out io.Writer, g *result.Grouped) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		code := strings.TrimSpace(scanner.Text())
		if code == "q" {
			return nil
		}
		sites, ok := g.Lookup(code)
		if !ok {
			fmt.Fprintln(out, "No sites returned that status code")
			continue
		}
		fmt.Fprintf(out, "Sites that returned status code %s:\n", code)
		for _, s := range sites {
			fmt.Fprintln(out, s)
		}
	}
}
