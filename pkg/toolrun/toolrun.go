// Package toolrun invokes the external toolchain (package managers,
// bundlers, compilers, installer generators) behind a single Runner
// interface so that pipeline steps can be exercised against fakes.
package toolrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cli/safeexec"
)

// ErrTimeout is returned when an invocation exceeds its Command.Timeout.
var ErrTimeout = errors.New("tool invocation timed out")

// Command describes one external tool invocation.
type Command struct {
	// Name is an executable name looked up on PATH, or a path to one.
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a finished invocation.
type Result struct {
	ExitCode int
	Output   []byte
	Duration time.Duration
}

// Runner runs a single command to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError reports a nonzero exit status.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
}

// Exec runs commands as child processes. Combined stdout and stderr are both
// captured in the Result and echoed to Stdout.
type Exec struct {
	Stdout io.Writer
}

// NewExec returns an Exec echoing tool output to os.Stdout.
func NewExec() *Exec {
	return &Exec{Stdout: os.Stdout}
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, cmd Command) (Result, error) {
	res := Result{ExitCode: -1}
	path, err := resolve(cmd.Name)
	if err != nil {
		return res, fmt.Errorf("resolve %s: %w", cmd.Name, err)
	}

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	var buf bytes.Buffer
	var out io.Writer = &buf
	if e.Stdout != nil {
		out = io.MultiWriter(&buf, e.Stdout)
	}
	c.Stdout = out
	c.Stderr = out

	start := time.Now()
	err = c.Run()
	res.Duration = time.Since(start)
	res.Output = buf.Bytes()
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("%s: %w", cmd, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return res, fmt.Errorf("%s: %w after %s", cmd, ErrTimeout, cmd.Timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, &ExitError{Command: cmd.String(), Code: exitErr.ExitCode()}
	}
	return res, fmt.Errorf("%s: %w", cmd, err)
}

func resolve(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) {
		return name, nil
	}
	return safeexec.LookPath(name)
}
