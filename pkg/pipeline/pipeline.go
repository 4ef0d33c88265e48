// Package pipeline drives the fixed, ordered sequence of release steps.
//
// Each step reports a tagged outcome. The Pipeline applies the step's
// declared Policy to tool failures, stops on the first fatal outcome and
// collects every result into a Summary.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"release-tools/go/pkg/config"
)

// Step is one idempotent unit of the release pipeline.
type Step interface {
	Name() string
	Run(ctx context.Context, bc *BuildContext) StepResult
}

// Policy decides what a tool failure inside a step does to the run.
type Policy byte

const (
	// AbortOnFailure escalates a step failure to a fatal abort.
	AbortOnFailure Policy = iota
	// WarnAndContinue logs the failure and moves on to the next step.
	WarnAndContinue
)

func (p Policy) String() string {
	if p == WarnAndContinue {
		return config.PolicyWarnAndContinue
	}
	return config.PolicyAbortOnFailure
}

// ParsePolicy is the inverse of Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case config.PolicyAbortOnFailure:
		return AbortOnFailure, nil
	case config.PolicyWarnAndContinue:
		return WarnAndContinue, nil
	default:
		return AbortOnFailure, fmt.Errorf("unknown failure policy %q", s)
	}
}

type entry struct {
	step   Step
	policy Policy
}

// Pipeline runs its steps strictly in the order they were added.
type Pipeline struct {
	entries []entry
}

// New returns an empty Pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Add appends a step with its failure policy.
func (p *Pipeline) Add(step Step, policy Policy) *Pipeline {
	p.entries = append(p.entries, entry{step: step, policy: policy})
	return p
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, 0, len(p.entries))
	for _, e := range p.entries {
		names = append(names, e.step.Name())
	}
	return names
}

// Run executes every step in order until one ends fatally or ctx is done.
func (p *Pipeline) Run(ctx context.Context, bc *BuildContext) Summary {
	log := bc.Log
	total := len(p.entries)
	summary := Summary{}
	log.Info("pipeline", "start", "progress", "Starting release run", "steps", total)

	for i, e := range p.entries {
		name := e.step.Name()
		if err := ctx.Err(); err != nil {
			summary.Aborted = true
			summary.AbortedAt = name
			summary.NotRun = p.namesFrom(i)
			log.Error("pipeline", "stop", "fatal", "Run cancelled", "step", name, "error", err)
			break
		}

		bc.Timer.StartStep()
		log.Info("pipeline", "start", "progress", fmt.Sprintf("[Step %d/%d] %s", i+1, total, name), "policy", e.policy)
		res := e.step.Run(ctx, bc)
		res.Name = name
		res.Duration = bc.Timer.StepElapsed()
		res = applyPolicy(e.policy, res)
		summary.Steps = append(summary.Steps, res)

		logResult(bc, res)
		log.Info("pipeline", "finish", "info", "Task took",
			"step", name,
			"duration", res.Duration.Truncate(time.Millisecond),
			"cumulative", bc.Timer.Elapsed().Truncate(time.Millisecond))

		if res.Status == StatusFailedFatal {
			summary.Aborted = true
			summary.AbortedAt = name
			summary.NotRun = p.namesFrom(i + 1)
			log.Error("pipeline", "stop", "fatal", "Aborting run", "step", name, "not_run", len(summary.NotRun))
			break
		}
	}

	summary.Duration = bc.Timer.Elapsed()
	return summary
}

func (p *Pipeline) namesFrom(i int) []string {
	var names []string
	for _, e := range p.entries[i:] {
		names = append(names, e.step.Name())
	}
	return names
}

func applyPolicy(policy Policy, res StepResult) StepResult {
	switch res.Status {
	case StatusOK, StatusSkipped:
		return res
	case StatusFailedRecovered:
		if policy == AbortOnFailure {
			res.Status = StatusFailedFatal
			res.Decision = policy.String() + ": run aborted"
		} else {
			res.Decision = policy.String() + ": run continued"
		}
	case StatusFailedFatal:
		res.Decision = "fatal: run aborted"
	default:
		res.Status = StatusFailedFatal
		res.Decision = "step reported no status: run aborted"
	}
	return res
}

func logResult(bc *BuildContext, res StepResult) {
	log := bc.Log
	switch res.Status {
	case StatusOK:
		log.Info("pipeline", "finish", "success", "Step done", "step", res.Name, "message", res.Message)
	case StatusSkipped:
		log.Info("pipeline", "finish", "skip", "Step skipped, output already present", "step", res.Name, "message", res.Message)
	case StatusFailedRecovered:
		log.Warn("pipeline", "finish", "warning", "Step failed, continuing", "step", res.Name, "decision", res.Decision, "error", res.Err, "failed_items", len(res.Failures))
	case StatusFailedFatal:
		log.Error("pipeline", "finish", "fatal", "Step failed", "step", res.Name, "decision", res.Decision, "error", res.Err)
	}
}
