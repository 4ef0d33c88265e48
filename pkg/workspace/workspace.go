// Package workspace resolves and prepares the fixed directory layout a
// release-builder run works in.
//
// Everything lives under a single root:
//
//	dist/               recreated on every run
//	temp/               cache kept across runs
//	temp/src/           source checkout
//	temp/env/           server environment
//	temp/launcher/      copy of the launcher sources
//	temp/launcher_env/  launcher environment
//	temp/wheels/        vended wheels
//
// Only one run may use a workspace at a time; Lock serializes runs.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/rogpeppe/go-internal/lockedfile"
)

const lockFileName = ".release-builder.lock"

// Layout holds the absolute paths of every directory a run touches.
type Layout struct {
	Root          string
	Dist          string
	Temp          string
	Src           string
	ServerEnv     string
	LauncherSrc   string
	LauncherEnv   string
	LauncherDist  string
	LauncherBuild string
	Wheels        string
}

// New resolves the layout under root.
func New(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve workspace root: %w", err)
	}
	temp := filepath.Join(abs, "temp")
	return Layout{
		Root:          abs,
		Dist:          filepath.Join(abs, "dist"),
		Temp:          temp,
		Src:           filepath.Join(temp, "src"),
		ServerEnv:     filepath.Join(temp, "env"),
		LauncherSrc:   filepath.Join(temp, "launcher"),
		LauncherEnv:   filepath.Join(temp, "launcher_env"),
		LauncherDist:  filepath.Join(temp, "launcher_dist"),
		LauncherBuild: filepath.Join(temp, "launcher_build"),
		Wheels:        filepath.Join(temp, "wheels"),
	}, nil
}

// Prepare clears stale distribution output and creates the directories every
// run expects. The scratch and source directories are left intact.
func (l Layout) Prepare() error {
	if err := os.RemoveAll(l.Dist); err != nil {
		return fmt.Errorf("clear dist dir: %w", err)
	}
	for _, dir := range []string{l.Temp, l.Dist, l.Src} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Lock takes an exclusive lock on the workspace, blocking while another run
// holds it. Close the returned file to release it.
func (l Layout) Lock() (*lockedfile.File, error) {
	if err := os.MkdirAll(l.Temp, 0755); err != nil {
		return nil, err
	}
	f, err := lockedfile.OpenFile(filepath.Join(l.Temp, lockFileName), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("lock workspace: %w", err)
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// VenvTool returns the path of an executable installed in a virtual
// environment.
func VenvTool(envDir, name string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(envDir, "Scripts", name)
	}
	return filepath.Join(envDir, "bin", name)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsNonEmptyDir reports whether path is a directory with at least one entry.
func IsNonEmptyDir(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClearDir removes every entry of dir but keeps dir itself.
func ClearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
