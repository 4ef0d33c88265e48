package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"release-tools/go/pkg/installercfg"
	"release-tools/go/pkg/pipeline"
	"release-tools/go/pkg/toolrun"
	"release-tools/go/pkg/workspace"
)

// InstallerConfigName is the generated config file, relative to the scratch
// dir.
const InstallerConfigName = "installer.cfg"

// Server generates the installer config, runs the installer generator and
// copies the resulting installers into the distribution dir.
type Server struct{}

func (s *Server) Name() string { return PackageServer }

func (s *Server) Run(ctx context.Context, bc *pipeline.BuildContext) pipeline.StepResult {
	l := bc.Layout
	cfgPath := filepath.Join(l.Temp, InstallerConfigName)

	if err := s.generateConfig(ctx, bc, cfgPath); err != nil {
		return pipeline.Failed(err)
	}
	if err := ensurePackageInit(bc); err != nil {
		return pipeline.Failed(err)
	}

	cmd := toolrun.Command{Name: bc.Config.Tools.Pynsist, Args: []string{InstallerConfigName}, Dir: l.Temp}
	if _, err := bc.Exec(ctx, PackageServer, cmd); err != nil {
		return pipeline.Failed(fmt.Errorf("pynsist: %w", err))
	}

	copied, err := copyArtifacts(l.Temp, bc.Config.Installer.Artifacts, l.Dist)
	if err != nil {
		return pipeline.Failed(err)
	}
	for _, a := range copied {
		bc.Log.Info("installer", "copy", "success", "Installer copied to dist", "file", a)
	}
	return pipeline.OK(fmt.Sprintf("%d installer artifacts in dist", len(copied)))
}

// generateConfig writes the installer config and checks that every expected
// section and key is present before pynsist sees it.
func (s *Server) generateConfig(ctx context.Context, bc *pipeline.BuildContext, cfgPath string) error {
	cfg := bc.Config
	l := bc.Layout

	if script := cfg.Installer.BuilderScript; script != "" {
		local := filepath.Join(l.Temp, filepath.Base(script))
		copied, err := workspace.CopyFileIfMissing(local, filepath.Join(l.Root, script))
		if err != nil {
			return fmt.Errorf("materialize builder script: %w", err)
		}
		if copied {
			bc.Log.Debug("installer", "copy", "success", "Builder script copied", "to", local)
		}
		cmd := toolrun.Command{Name: cfg.Tools.Python, Args: []string{filepath.Base(script)}, Dir: l.Temp}
		if _, err := bc.Exec(ctx, PackageServer, cmd); err != nil {
			return fmt.Errorf("builder script: %w", err)
		}
		f, err := installercfg.Read(cfgPath)
		if err != nil {
			return err
		}
		if err := installercfg.Check(f); err != nil {
			return fmt.Errorf("%s: %w", InstallerConfigName, err)
		}
		return nil
	}

	_, m, err := installercfg.Generate(cfgPath, installercfg.Options{
		Application: installercfg.Application{
			Name:       cfg.Application.Name,
			Version:    cfg.Application.Version,
			EntryPoint: cfg.Application.EntryPoint,
			Console:    cfg.Application.Console,
		},
		PythonVersion:     cfg.Python.Version,
		Requirements:      filepath.Join(l.Root, cfg.Installer.Requirements),
		Encoding:          cfg.Installer.RequirementsEncoding,
		ExtraWheelSources: cfg.Installer.ExtraWheelSources,
	})
	if err != nil {
		return fmt.Errorf("generate %s: %w", InstallerConfigName, err)
	}
	bc.Log.Info("installer", "generate", "success", "Installer config written",
		"file", cfgPath, "requirements_encoding", m.Encoding, "requirements", len(m.Specifiers()))
	return nil
}

// ensurePackageInit makes the checked out source importable as a package.
func ensurePackageInit(bc *pipeline.BuildContext) error {
	path := filepath.Join(bc.Layout.Src, "__init__.py")
	if workspace.Exists(path) {
		return nil
	}
	if err := os.WriteFile(path, []byte("# "+bc.Config.Application.Name+"\n"), 0644); err != nil {
		return fmt.Errorf("write package marker: %w", err)
	}
	return nil
}

func copyArtifacts(baseDir string, patterns []string, dist string) ([]string, error) {
	files, err := globFiles(baseDir, patterns)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("installer generator produced no artifacts matching " + joinItems(patterns))
	}
	var copied []string
	for _, f := range files {
		dst := filepath.Join(dist, filepath.Base(f))
		if err := workspace.CopyFile(dst, filepath.Join(baseDir, filepath.FromSlash(f))); err != nil {
			return copied, fmt.Errorf("copy %s: %w", f, err)
		}
		copied = append(copied, dst)
	}
	return copied, nil
}
