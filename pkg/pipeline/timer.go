package pipeline

import "time"

// Timer records when the run and the current step started.
type Timer struct {
	now       func() time.Time
	start     time.Time
	stepStart time.Time
}

// NewTimer starts a timer at the current wall-clock time.
func NewTimer() *Timer {
	return newTimer(time.Now)
}

func newTimer(now func() time.Time) *Timer {
	start := now()
	return &Timer{now: now, start: start, stepStart: start}
}

// StartStep marks the beginning of a new step.
func (t *Timer) StartStep() {
	t.stepStart = t.now()
}

// StepElapsed returns the time spent in the current step.
func (t *Timer) StepElapsed() time.Duration {
	return t.now().Sub(t.stepStart)
}

// Elapsed returns the time spent since the run started.
func (t *Timer) Elapsed() time.Duration {
	return t.now().Sub(t.start)
}
