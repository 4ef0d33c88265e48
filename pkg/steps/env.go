package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"release-tools/go/pkg/pipeline"
	"release-tools/go/pkg/toolrun"
	"release-tools/go/pkg/workspace"
)

// Env provisions an isolated python environment and installs a requirements
// file into it. The server and launcher environments are independent
// instances.
type Env struct {
	name         string
	envDir       func(workspace.Layout) string
	requirements func(workspace.Layout) string
	// prepare runs before the skip check.
	prepare func(bc *pipeline.BuildContext) error
}

// NewServerEnv provisions temp/env from the checked out requirements.
func NewServerEnv() *Env {
	return &Env{
		name:   ServerEnv,
		envDir: func(l workspace.Layout) string { return l.ServerEnv },
		requirements: func(l workspace.Layout) string {
			return filepath.Join(l.Src, "requirements.txt")
		},
	}
}

// NewLauncherEnv copies the launcher sources into the scratch dir once and
// provisions temp/launcher_env from their requirements.
func NewLauncherEnv() *Env {
	return &Env{
		name:   LauncherEnv,
		envDir: func(l workspace.Layout) string { return l.LauncherEnv },
		requirements: func(l workspace.Layout) string {
			return filepath.Join(l.LauncherSrc, "requirements.txt")
		},
		prepare: copyLauncherSources,
	}
}

func copyLauncherSources(bc *pipeline.BuildContext) error {
	dst := bc.Layout.LauncherSrc
	if workspace.Exists(dst) {
		return nil
	}
	src := filepath.Join(bc.Layout.Root, bc.Config.Launcher.Source)
	bc.Log.Info("launcher", "copy", "progress", "Copying launcher sources", "from", src, "to", dst)
	if err := workspace.CopyDir(dst, src); err != nil {
		os.RemoveAll(dst)
		return fmt.Errorf("copy launcher sources: %w", err)
	}
	return nil
}

func (s *Env) Name() string { return s.name }

func (s *Env) Run(ctx context.Context, bc *pipeline.BuildContext) pipeline.StepResult {
	if s.prepare != nil {
		if err := s.prepare(bc); err != nil {
			return pipeline.Failed(err)
		}
	}

	envDir := s.envDir(bc.Layout)
	if workspace.Exists(envDir) {
		return pipeline.Skipped("environment present at " + envDir)
	}

	bc.Log.Info("env", "create", "progress", "Creating environment", "dir", envDir)
	venv := toolrun.Command{Name: bc.Config.Tools.Python, Args: []string{"-m", "venv", envDir}, Dir: bc.Layout.Temp}
	if _, err := bc.Exec(ctx, s.name, venv); err != nil {
		return s.discard(bc, envDir, fmt.Errorf("create environment: %w", err))
	}

	requirements := s.requirements(bc.Layout)
	install := toolrun.Command{
		Name: workspace.VenvTool(envDir, "pip"),
		Args: []string{"install", "-r", requirements},
		Dir:  bc.Layout.Temp,
	}
	if _, err := bc.ExecRetry(ctx, s.name, install); err != nil {
		return s.discard(bc, envDir, fmt.Errorf("install %s: %w", filepath.Base(requirements), err))
	}
	return pipeline.OK("environment ready at " + envDir)
}

// discard removes a half-provisioned environment so the next run does not
// skip it.
func (s *Env) discard(bc *pipeline.BuildContext, envDir string, cause error) pipeline.StepResult {
	if err := os.RemoveAll(envDir); err != nil {
		bc.Log.Error("env", "clean", "error", "Could not remove broken environment", "dir", envDir, "error", err)
	}
	return pipeline.Failed(cause)
}
