package pipeline

import "time"

// Status is the outcome of a single step.
type Status byte

const (
	// StatusUnknown means no status has been set. This is an erroneous status.
	StatusUnknown Status = iota
	// StatusOK means the step did its work.
	StatusOK
	// StatusSkipped means the step found its output already in place.
	StatusSkipped
	// StatusFailedRecovered means the step failed and the run continued.
	StatusFailedRecovered
	// StatusFailedFatal means the step failed and the run was aborted.
	StatusFailedFatal
)

// String implements the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped-already-done"
	case StatusFailedRecovered:
		return "failed-recovered"
	case StatusFailedFatal:
		return "failed-fatal"
	default:
		return "unknown"
	}
}

// Failed reports whether the step did not succeed.
func (s Status) Failed() bool {
	return s == StatusFailedRecovered || s == StatusFailedFatal
}

// StepResult is the outcome of one step. Steps build it with OK, Skipped,
// Failed or Fatal; the Pipeline fills in the rest.
type StepResult struct {
	Name     string
	Status   Status
	Duration time.Duration
	Message  string
	Err      error
	// Failures lists the items that failed inside a step that keeps going
	// past individual failures.
	Failures []string
	// Decision is the policy decision the Pipeline took for a failed step.
	Decision string
}

// OK reports a step that did its work.
func OK(message string) StepResult {
	return StepResult{Status: StatusOK, Message: message}
}

// Skipped reports a step whose output was already present.
func Skipped(message string) StepResult {
	return StepResult{Status: StatusSkipped, Message: message}
}

// Failed reports a tool failure. The step's policy decides whether the run
// continues.
func Failed(err error) StepResult {
	return StepResult{Status: StatusFailedRecovered, Err: err, Message: errMessage(err)}
}

// Fatal reports a failure that makes continuing meaningless regardless of
// policy.
func Fatal(err error) StepResult {
	return StepResult{Status: StatusFailedFatal, Err: err, Message: errMessage(err)}
}

// WithFailures returns a copy of r listing failed items.
func (r StepResult) WithFailures(items []string) StepResult {
	r.Failures = items
	return r
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
