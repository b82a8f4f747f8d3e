package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"ratingsync/internal/jobs"
	"ratingsync/internal/preflight"
)

const statusLabelWidth = 16

// statusReport accumulates the sections printed by the status command.
type statusReport struct {
	colorize bool
	lines    []string
	failed   int
}

func newStatusReport(out io.Writer) *statusReport {
	return &statusReport{colorize: shouldColorize(out)}
}

func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	header := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	r.lines = append(r.lines,
		r.paint(header, text.FgBlue),
		r.paint(strings.Repeat("-", len(header)), text.FgBlue))
}

func (r *statusReport) info(label, message string) {
	r.add(label, "INFO", message, text.FgBlue)
}

func (r *statusReport) warn(label, message string) {
	r.add(label, "WARN", message, text.FgYellow)
}

// check records a preflight result. Checks skipped for a disabled provider
// are informational and do not count as failures.
func (r *statusReport) check(result preflight.Result) {
	switch {
	case result.Detail == preflight.Disabled:
		r.info(result.Name, result.Detail)
	case result.Passed:
		r.add(result.Name, "OK", result.Detail, text.FgGreen)
	default:
		r.failed++
		r.add(result.Name, "ERROR", result.Detail, text.FgRed)
	}
}

// job records an unfinished job with the stage it resumes from.
func (r *statusReport) job(job *jobs.Job) {
	r.info(job.Library, fmt.Sprintf("library %d resumes at %s", job.LibraryID, job.Stage))
}

func (r *statusReport) add(label, tag, message string, color text.Color) {
	status := "[" + tag + "]"
	if message != "" {
		status += " " + message
	}
	r.lines = append(r.lines, r.paint(fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", status), color))
}

func (r *statusReport) paint(line string, color text.Color) string {
	if !r.colorize {
		return line
	}
	return text.Colors{color}.Sprint(line)
}

func (r *statusReport) String() string {
	return strings.Join(r.lines, "\n")
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
