package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"release-tools/go/pkg/logbowl"
)

var (
	colorOK      = color.New(color.FgGreen)
	colorSkipped = color.New(color.FgCyan)
	colorWarn    = color.New(color.FgYellow)
	colorFatal   = color.New(color.FgRed, color.Bold)
	colorNotRun  = color.New(color.FgHiBlack)
)

// Summary collects the results of a run.
type Summary struct {
	Steps     []StepResult
	NotRun    []string
	Duration  time.Duration
	Aborted   bool
	AbortedAt string
}

// Failed reports whether any step ended fatally or the run was cancelled.
func (s Summary) Failed() bool {
	if s.Aborted {
		return true
	}
	for _, r := range s.Steps {
		if r.Status == StatusFailedFatal {
			return true
		}
	}
	return false
}

// Err returns a non-nil error when the run failed.
func (s Summary) Err() error {
	if !s.Failed() {
		return nil
	}
	for _, r := range s.Steps {
		if r.Status != StatusFailedFatal {
			continue
		}
		if r.Err == nil {
			return fmt.Errorf("release run aborted at %s: %s", r.Name, r.Decision)
		}
		return fmt.Errorf("release run aborted at %s: %w", r.Name, r.Err)
	}
	return fmt.Errorf("release run aborted before %s", s.AbortedAt)
}

// Result returns the result of the named step, if it ran.
func (s Summary) Result(name string) (StepResult, bool) {
	for _, r := range s.Steps {
		if r.Name == name {
			return r, true
		}
	}
	return StepResult{}, false
}

// Log records the summary, including every policy decision, in the log.
func (s Summary) Log(log logbowl.Logger) {
	for _, r := range s.Steps {
		args := []interface{}{"step", r.Name, "status", r.Status.String(), "duration", r.Duration.Truncate(time.Millisecond)}
		if r.Decision != "" {
			args = append(args, "decision", r.Decision)
		}
		if len(r.Failures) > 0 {
			args = append(args, "failed_items", strings.Join(r.Failures, ","))
		}
		if r.Status.Failed() {
			log.Warn("pipeline", "summary", "warning", "Step summary", args...)
		} else {
			log.Info("pipeline", "summary", "info", "Step summary", args...)
		}
	}
	for _, name := range s.NotRun {
		log.Warn("pipeline", "summary", "skip", "Step not run", "step", name)
	}
	if s.Failed() {
		log.Error("pipeline", "finish", "failure", "Release run failed", "aborted_at", s.AbortedAt, "duration", s.Duration.Truncate(time.Millisecond))
		return
	}
	log.Info("pipeline", "finish", "complete", "Release run complete", "duration", s.Duration.Truncate(time.Millisecond))
}

// Print writes a human-readable table of the run to w.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "\nRelease summary (%s)\n", s.Duration.Truncate(time.Second))
	for _, r := range s.Steps {
		line := fmt.Sprintf("  %-16s %-22s %8s", r.Name, statusColor(r.Status).Sprint(r.Status.String()), r.Duration.Truncate(time.Second))
		if r.Decision != "" {
			line += "  " + r.Decision
		}
		if len(r.Failures) > 0 {
			line += fmt.Sprintf(" (%d failed: %s)", len(r.Failures), strings.Join(r.Failures, ", "))
		}
		fmt.Fprintln(w, line)
	}
	for _, name := range s.NotRun {
		fmt.Fprintf(w, "  %-16s %s\n", name, colorNotRun.Sprint("not run"))
	}
}

func statusColor(s Status) *color.Color {
	switch s {
	case StatusOK:
		return colorOK
	case StatusSkipped:
		return colorSkipped
	case StatusFailedRecovered:
		return colorWarn
	default:
		return colorFatal
	}
}
