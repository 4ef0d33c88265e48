package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"release-tools/go/pkg/manifest"
	"release-tools/go/pkg/pipeline"
	"release-tools/go/pkg/toolrun"
	"release-tools/go/pkg/workspace"
)

// Wheels builds one wheel per manifest entry into the wheel dir. A failed
// entry does not stop the others.
type Wheels struct{}

func (s *Wheels) Name() string { return VendWheels }

func (s *Wheels) Run(ctx context.Context, bc *pipeline.BuildContext) pipeline.StepResult {
	cfg := bc.Config
	wheelDir := bc.Layout.Wheels
	listing := filepath.Join(bc.Layout.Root, cfg.Wheels.Listing)

	if workspace.Exists(wheelDir) {
		n, err := WriteListing(listing, wheelDir, cfg.Wheels.Pattern)
		if err != nil {
			return pipeline.Failed(err)
		}
		return pipeline.Skipped(fmt.Sprintf("wheel dir present, listed %d files", n))
	}

	m, err := manifest.Read(filepath.Join(bc.Layout.Root, cfg.Wheels.Manifest))
	if err != nil {
		return pipeline.Failed(err)
	}
	specs := m.Specifiers()
	bc.Log.Info("wheels", "build", "progress", "Vending wheels", "count", len(specs), "encoding", m.Encoding)
	if err := os.MkdirAll(wheelDir, 0755); err != nil {
		return pipeline.Failed(err)
	}

	var failed []string
	for i, spec := range specs {
		cmd := toolrun.Command{
			Name: cfg.Tools.Pip,
			Args: []string{"wheel", "--wheel-dir=" + wheelDir, spec},
			Dir:  bc.Layout.Root,
		}
		if _, err := bc.ExecRetry(ctx, VendWheels, cmd); err != nil {
			if ctx.Err() != nil {
				return pipeline.Failed(ctx.Err()).WithFailures(append(failed, specs[i:]...))
			}
			bc.Log.Warn("wheels", "build", "failure", "Could not build wheel", "spec", spec, "error", err)
			failed = append(failed, spec)
			continue
		}
		bc.Log.Debug("wheels", "build", "success", "Built wheel", "spec", spec)
	}

	n, err := WriteListing(listing, wheelDir, cfg.Wheels.Pattern)
	if err != nil {
		return pipeline.Failed(err).WithFailures(failed)
	}
	if len(failed) > 0 {
		err := fmt.Errorf("%d of %d wheels failed: %s", len(failed), len(specs), joinItems(failed))
		return pipeline.Failed(err).WithFailures(failed)
	}
	return pipeline.OK(fmt.Sprintf("vended %d wheels, listed %d files", len(specs), n))
}

// WriteListing writes the sorted names of the files in wheelDir matching
// pattern to path, one per line. It returns the number of names written.
func WriteListing(path, wheelDir, pattern string) (int, error) {
	files, err := globFiles(wheelDir, []string{pattern})
	if err != nil {
		return 0, err
	}
	var b strings.Builder
	for _, f := range files {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return 0, fmt.Errorf("write wheel listing: %w", err)
	}
	return len(files), nil
}
