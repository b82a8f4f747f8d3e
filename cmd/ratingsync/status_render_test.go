package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"ratingsync/internal/catalog"
	"ratingsync/internal/jobs"
	"ratingsync/internal/preflight"
)

func TestStatusReportCheckLines(t *testing.T) {
	report := newStatusReport(&bytes.Buffer{})
	report.section("Checks")
	report.check(preflight.Result{Name: "Plex catalog", Passed: true, Detail: "/data/library.db"})
	report.check(preflight.Result{Name: "TMDB", Detail: "auth failed (invalid api key)"})
	report.check(preflight.Result{Name: "TVDB", Detail: preflight.Disabled})

	lines := strings.Split(report.String(), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), report)
	}
	if lines[0] != "== Checks ==" || lines[1] != strings.Repeat("-", len("== Checks ==")) {
		t.Fatalf("unexpected header: %q / %q", lines[0], lines[1])
	}
	want := fmt.Sprintf("  %-*s %s", statusLabelWidth, "Plex catalog:", "[OK] /data/library.db")
	if lines[2] != want {
		t.Fatalf("check line mismatch\n got: %q\nwant: %q", lines[2], want)
	}
	if !strings.Contains(lines[3], "[ERROR] auth failed") {
		t.Fatalf("expected failed TMDB check, got %q", lines[3])
	}
	if !strings.Contains(lines[4], "[INFO] Disabled") {
		t.Fatalf("disabled provider should be informational, got %q", lines[4])
	}
	if report.failed != 1 {
		t.Fatalf("failed = %d, want 1", report.failed)
	}
}

func TestStatusReportSectionsAreSeparated(t *testing.T) {
	report := newStatusReport(&bytes.Buffer{})
	report.section("Configuration")
	report.warn("Notice", "TVDB_AUTH_STRING is deprecated")
	report.section("Unfinished jobs")
	report.job(jobs.New(catalog.Library{ID: 4, Name: "Anime", Type: catalog.LibrarySeries}))

	out := report.String()
	if !strings.Contains(out, "[WARN] TVDB_AUTH_STRING is deprecated\n\n== Unfinished jobs ==") {
		t.Fatalf("sections not separated by a blank line:\n%s", out)
	}
	if !strings.Contains(out, "Anime:") || !strings.Contains(out, "library 4 resumes at QUEUED") {
		t.Fatalf("missing job line:\n%s", out)
	}
}
