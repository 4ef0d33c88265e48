package steps

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"release-tools/go/pkg/pipeline"
	"release-tools/go/pkg/toolrun"
	"release-tools/go/pkg/workspace"
)

// Launcher compiles the standalone launcher with pyinstaller and copies it
// into the distribution dir.
type Launcher struct{}

func (s *Launcher) Name() string { return BuildLauncher }

func (s *Launcher) Run(ctx context.Context, bc *pipeline.BuildContext) pipeline.StepResult {
	l := bc.Layout
	fresh, err := LauncherUpToDate(l.Temp, bc.Config.Launcher.Inputs, l.LauncherDist)
	if err != nil {
		return pipeline.Failed(fmt.Errorf("check launcher output: %w", err))
	}

	if fresh {
		bc.Log.Info("launcher", "compile", "cached", "Launcher output is newer than its sources")
	} else {
		cmd := toolrun.Command{
			Name: workspace.VenvTool(l.LauncherEnv, "pyinstaller"),
			Args: []string{
				filepath.FromSlash(bc.Config.Launcher.Spec),
				"--clean",
				"--distpath", l.LauncherDist,
				"--workpath", l.LauncherBuild,
			},
			Dir: l.Temp,
		}
		if _, err := bc.Exec(ctx, BuildLauncher, cmd); err != nil {
			return pipeline.Failed(fmt.Errorf("pyinstaller: %w", err))
		}
	}

	dst := filepath.Join(l.Dist, "launcher")
	if err := workspace.CopyDir(dst, l.LauncherDist); err != nil {
		return pipeline.Failed(fmt.Errorf("copy launcher into dist: %w", err))
	}
	if fresh {
		return pipeline.Skipped("launcher up to date, copied to " + dst)
	}
	return pipeline.OK("launcher compiled to " + dst)
}

// LauncherUpToDate reports whether outDir holds at least one file and its
// newest file is newer than every input matched under baseDir.
func LauncherUpToDate(baseDir string, inputs []string, outDir string) (bool, error) {
	newestOut, err := newestFile(outDir)
	if err != nil {
		return false, err
	}
	if newestOut.IsZero() {
		return false, nil
	}
	files, err := globFiles(baseDir, inputs)
	if err != nil {
		return false, err
	}
	for _, f := range files {
		info, err := os.Stat(filepath.Join(baseDir, filepath.FromSlash(f)))
		if err != nil {
			return false, err
		}
		if !info.ModTime().Before(newestOut) {
			return false, nil
		}
	}
	return true, nil
}

func newestFile(dir string) (time.Time, error) {
	var newest time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest, err
}
