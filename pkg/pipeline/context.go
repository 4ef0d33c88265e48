package pipeline

import (
	"context"

	"release-tools/go/pkg/config"
	"release-tools/go/pkg/logbowl"
	"release-tools/go/pkg/toolrun"
	"release-tools/go/pkg/workspace"
)

// BuildContext is the run-scoped state handed to every step. Steps must not
// rely on the process working directory; every path they need is here.
type BuildContext struct {
	Log    logbowl.Logger
	Layout workspace.Layout
	Config *config.Config
	Runner toolrun.Runner
	Timer  *Timer
}

// Source returns the pinned repository coordinates.
func (bc *BuildContext) Source() config.SourceConfig {
	return bc.Config.Source
}

// Exec runs cmd with the timeout configured for step.
func (bc *BuildContext) Exec(ctx context.Context, step string, cmd toolrun.Command) (toolrun.Result, error) {
	if cmd.Timeout == 0 {
		cmd.Timeout = bc.Config.TimeoutFor(step)
	}
	bc.Log.Debug("tool", "exec", "progress", "Running tool", "step", step, "command", cmd.String(), "dir", cmd.Dir)
	res, err := bc.Runner.Run(ctx, cmd)
	if err != nil {
		bc.Log.Debug("tool", "exec", "failure", "Tool failed", "step", step, "exit_code", res.ExitCode, "error", err)
		return res, err
	}
	bc.Log.Debug("tool", "exec", "success", "Tool finished", "step", step, "duration", res.Duration)
	return res, nil
}

// ExecRetry is Exec with the configured bounded retry, for network-bound
// invocations.
func (bc *BuildContext) ExecRetry(ctx context.Context, step string, cmd toolrun.Command) (toolrun.Result, error) {
	var res toolrun.Result
	err := toolrun.Retry(ctx, bc.RetryPolicy(), func(attempt int) error {
		if attempt > 1 {
			bc.Log.Warn("tool", "retry", "retry", "Retrying tool", "step", step, "command", cmd.String(), "attempt", attempt)
		}
		var err error
		res, err = bc.Exec(ctx, step, cmd)
		return err
	})
	return res, err
}

// RetryPolicy returns the configured retry policy.
func (bc *BuildContext) RetryPolicy() toolrun.RetryPolicy {
	return toolrun.RetryPolicy{
		Attempts: bc.Config.Retry.Attempts,
		Backoff:  bc.Config.Retry.Backoff,
	}
}
