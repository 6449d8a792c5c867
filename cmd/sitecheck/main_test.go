package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func init() {
	color.NoColor = true
}

func run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := execute(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/moved":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeSites(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sites.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("writing sites file: %v", err)
	}
	return path
}

func TestNormalizeArgs(t *testing.T) {
	got := normalizeArgs([]string{"-ip", "10.0.0.0/30", "-ip=10.0.0.0/31", "-t", "2", "--ip"})
	want := []string{"--ip", "10.0.0.0/30", "--ip=10.0.0.0/31", "-t", "2", "--ip"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestExecute_UsageErrors(t *testing.T) {
	sites := writeSites(t, "http://127.0.0.1:1")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no source", nil, "Error::Please provide a filename, URL or IP range"},
		{"file and url", []string{"-f", sites, "-u", "http://a.test"}, "Error::Please provide only one of filename, URL or IP range"},
		{"missing file", []string{"-f", filepath.Join(t.TempDir(), "nope.txt")}, "Error::File does not exist"},
		{"bad cidr", []string{"-ip", "not-a-range"}, "Error::"},
		{"host bits", []string{"-ip", "10.0.0.1/30"}, "Error::"},
		{"non-numeric timeout", []string{"-u", "http://a.test", "-t", "abc"}, "Error::invalid argument"},
		{"zero batch", []string{"-f", sites, "-b", "0"}, "Error::Batch size must be greater than 0"},
		{"zero retries", []string{"-f", sites, "-r", "0"}, "Error::Retries must be a positive integer"},
		{"zero timeout", []string{"-f", sites, "-t", "0"}, "Error::Timeout must be a positive integer"},
		{"unknown flag", []string{"-z"}, "Error::unknown shorthand flag"},
		{"stray argument", []string{"-f", sites, "extra"}, "Error::unexpected argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := run(t, "", tt.args...)
			if code != 1 {
				t.Errorf("expected exit 1, got %d", code)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected %q in output, got:\n%s", tt.want, out)
			}
			if !strings.Contains(out, "Usage:") {
				t.Errorf("expected usage text, got:\n%s", out)
			}
			if strings.Contains(out, "Checking response(s)") {
				t.Error("expected no probing after a usage error")
			}
		})
	}
}

func TestExecute_HelpExitsNonZero(t *testing.T) {
	code, out, _ := run(t, "", "-h")
	if code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out, "Usage:") {
		t.Errorf("expected usage text, got:\n%s", out)
	}
}

func TestExecute_Version(t *testing.T) {
	code, out, _ := run(t, "", "version")
	if code != 0 {
		t.Errorf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(out, "sitecheck dev") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestExecute_SingleURL(t *testing.T) {
	srv := newSiteServer(t)
	output := filepath.Join(t.TempDir(), "lookup.json")

	code, out, _ := run(t, "", "-u", srv.URL+"/moved", "-o", output)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d; output:\n%s", code, out)
	}
	if !strings.Contains(out, srv.URL+"/moved") || !strings.Contains(out, ": 204") {
		t.Errorf("expected one table line with 204, got:\n%s", out)
	}
	if strings.Contains(out, "Final Report") {
		t.Error("expected no final report on the single-URL path")
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("expected no lookup file, stat returned %v", err)
	}
}

func TestExecute_FileRun(t *testing.T) {
	srv := newSiteServer(t)
	sites := writeSites(t, srv.URL+"/ok", srv.URL+"/missing", srv.URL+"/ok2", "http://127.0.0.1:1")
	dir := t.TempDir()
	output := filepath.Join(dir, "lookup.json")
	db := filepath.Join(dir, "history.db")

	code, out, errOut := run(t, "", "-f", sites, "-b", "2", "-o", output, "--db", db, "--no-interactive")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d; output:\n%s\nstderr:\n%s", code, out, errOut)
	}
	for _, want := range []string{
		"Checking response(s) for " + sites + " with timeout 1s and retries 1",
		"Total sites to check: 4",
		"Final Report",
		"4 sites checked",
		"1 sites returned status code 200",
		"2 sites returned status code 404",
		"1 sites returned status code Error",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Enter a status code") {
		t.Error("expected no prompt with --no-interactive")
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading lookup file: %v", err)
	}
	var lookup map[string][]string
	if err := json.Unmarshal(data, &lookup); err != nil {
		t.Fatalf("decoding lookup file: %v", err)
	}
	if len(lookup["404"]) != 2 || lookup["404"][0] != srv.URL+"/missing" || lookup["404"][1] != srv.URL+"/ok2" {
		t.Errorf("unexpected 404 group %v", lookup["404"])
	}
	if len(lookup["Error"]) != 1 {
		t.Errorf("unexpected Error group %v", lookup["Error"])
	}

	code, out, _ = run(t, "", "history", "--db", db)
	if code != 0 || !strings.Contains(out, sites) {
		t.Errorf("expected stored run in history (exit %d):\n%s", code, out)
	}

	code, out, _ = run(t, "", "show", "latest", "404", "--db", db)
	if code != 0 || !strings.Contains(out, srv.URL+"/missing") {
		t.Errorf("expected 404 sites from show (exit %d):\n%s", code, out)
	}
}

func TestExecute_Interactive(t *testing.T) {
	srv := newSiteServer(t)
	sites := writeSites(t, srv.URL+"/ok", srv.URL+"/missing")
	output := filepath.Join(t.TempDir(), "lookup.json")

	code, out, _ := run(t, "404\n500\nq\n", "-f", sites, "-o", output)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "Sites that returned status code 404:\n"+srv.URL+"/missing\n") {
		t.Errorf("expected 404 lookup in output, got:\n%s", out)
	}
	if !strings.Contains(out, "No sites returned that status code") {
		t.Errorf("expected miss message for 500, got:\n%s", out)
	}
}

func TestExecute_PersistenceErrorStillReports(t *testing.T) {
	srv := newSiteServer(t)
	sites := writeSites(t, srv.URL+"/ok")
	output := filepath.Join(t.TempDir(), "missing-dir", "lookup.json")

	code, out, errOut := run(t, "", "-f", sites, "-o", output, "--no-interactive")
	if code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out, "Final Report") {
		t.Errorf("expected report despite write failure, got:\n%s", out)
	}
	if !strings.Contains(errOut, "writing code lookup") {
		t.Errorf("expected logged write failure, got:\n%s", errOut)
	}
}

func TestExecute_CIDR(t *testing.T) {
	output := filepath.Join(t.TempDir(), "lookup.json")

	// 127.0.0.0/30 yields 127.0.0.1 and 127.0.0.2 on port 80, which nothing
	// in the test listens on.
	code, out, _ := run(t, "", "-ip", "127.0.0.0/30", "-o", output, "--no-interactive", "-b", "2")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d; output:\n%s", code, out)
	}
	if !strings.Contains(out, "Total sites to check: 2") {
		t.Errorf("expected two hosts, got:\n%s", out)
	}
	if !strings.Contains(out, "http://127.0.0.1") || !strings.Contains(out, "http://127.0.0.2") {
		t.Errorf("expected expanded hosts in table, got:\n%s", out)
	}
}

func TestExecute_HistoryWithoutDatabase(t *testing.T) {
	code, out, _ := run(t, "", "history")
	if code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out, "Error::No history database") {
		t.Errorf("expected missing database error, got:\n%s", out)
	}
}
