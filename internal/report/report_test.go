package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/hazz-dev/sitecheck/internal/report"
	"github.com/hazz-dev/sitecheck/internal/result"
)

func init() {
	color.NoColor = true
}

func sampleTable() *result.Table {
	t := result.NewTable()
	t.Set("http://a.test", result.Code(200))
	t.Set("http://b.test", result.Failure)
	t.Set("http://c.test", result.Code(200))
	t.Set("http://d.test", result.Code(404))
	return t
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site_code_lookup.json")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := report.WriteJSON(path, result.Group(sampleTable())); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string][]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, data)
	}
	if len(got["200"]) != 2 || got["Error"][0] != "http://b.test" || got["404"][0] != "http://d.test" {
		t.Errorf("unexpected grouping: %v", got)
	}
	if !strings.HasPrefix(string(data), "{\n    \"200\": [\n") {
		t.Errorf("expected 4-space indented output starting with the first group, got:\n%s", data)
	}
}

func TestWriteJSON_Unwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "out.json")
	err := report.WriteJSON(path, result.Group(sampleTable()))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var perr *report.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PersistenceError, got %T", err)
	}
	if perr.Path != path {
		t.Errorf("expected path %q, got %q", path, perr.Path)
	}
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	report.Banner(&buf, "targets.txt", time.Second, 3)
	out := buf.String()
	if !strings.Contains(out, "Checking response(s) for targets.txt with timeout 1s and retries 3") {
		t.Errorf("unexpected banner:\n%s", out)
	}
	if strings.Count(out, strings.Repeat("=", 80)) != 2 {
		t.Errorf("expected two rules, got:\n%s", out)
	}
}

func TestSites(t *testing.T) {
	var buf bytes.Buffer
	if !report.Sites(&buf, sampleTable(), 100) {
		t.Fatal("expected table to be printed")
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected header, rule and 4 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Site") || !strings.HasSuffix(lines[0], " Status Code") {
		t.Errorf("unexpected header %q", lines[0])
	}
	want := fmt.Sprintf("%-80s: %-5s", "http://b.test", "Error")
	if lines[3] != want {
		t.Errorf("row mismatch:\n got %q\nwant %q", lines[3], want)
	}
}

func TestSites_SuppressedAboveLimit(t *testing.T) {
	var buf bytes.Buffer
	if report.Sites(&buf, sampleTable(), 3) {
		t.Fatal("expected table to be suppressed")
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got:\n%s", buf.String())
	}
}

func TestSingle(t *testing.T) {
	var buf bytes.Buffer
	report.Single(&buf, "http://a.test", result.Failure)
	if !strings.Contains(buf.String(), "http://a.test") || !strings.Contains(buf.String(), ": Error") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestSummary(t *testing.T) {
	tbl := sampleTable()
	var buf bytes.Buffer
	report.Summary(&buf, tbl, result.Group(tbl))
	out := buf.String()

	for _, want := range []string{
		"Final Report",
		"4 sites checked",
		"2 sites returned status code 200",
		"1 sites returned status code Error",
		"1 sites returned status code 404",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in summary, got:\n%s", want, out)
		}
	}
	if strings.Index(out, "code 200") > strings.Index(out, "code Error") {
		t.Error("groups should be listed in first-occurrence order")
	}
}

func TestInteractive(t *testing.T) {
	in := strings.NewReader("200\n503\nError\nq\n404\n")
	var out bytes.Buffer

	if err := report.Interactive(in, &out, result.Group(sampleTable())); err != nil {
		t.Fatalf("Interactive: %v", err)
	}

	got := out.String()
	if strings.Count(got, report.Prompt) != 4 {
		t.Errorf("expected 4 prompts, got:\n%s", got)
	}
	if !strings.Contains(got, "Sites that returned status code 200:\nhttp://a.test\nhttp://c.test\n") {
		t.Errorf("missing 200 group:\n%s", got)
	}
	if !strings.Contains(got, "No sites returned that status code") {
		t.Errorf("missing not-found message:\n%s", got)
	}
	if !strings.Contains(got, "Sites that returned status code Error:\nhttp://b.test\n") {
		t.Errorf("missing Error group:\n%s", got)
	}
	if strings.Contains(got, "http://d.test") {
		t.Error("input after q should not be read")
	}
}

func TestInteractive_EOF(t *testing.T) {
	var out bytes.Buffer
	if err := report.Interactive(strings.NewReader(""), &out, result.Group(sampleTable())); err != nil {
		t.Fatalf("Interactive: %v", err)
	}
}
