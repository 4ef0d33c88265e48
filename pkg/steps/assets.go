package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"release-tools/go/pkg/pipeline"
	"release-tools/go/pkg/toolrun"
	"release-tools/go/pkg/workspace"
)

// ErrAssetsNotReady means the bundler status file does not report a
// finished bundle.
var ErrAssetsNotReady = errors.New("asset bundle not ready")

const assetsDone = "done"

type bundleStats struct {
	Status string `json:"status"`
}

// ReadAssetStatus returns the status recorded in a webpack stats file.
func ReadAssetStatus(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var stats bundleStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return "", fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return stats.Status, nil
}

// Assets verifies the committed bundle status and rebuilds the production
// bundle.
type Assets struct{}

func (s *Assets) Name() string { return BuildAssets }

func (s *Assets) Run(ctx context.Context, bc *pipeline.BuildContext) pipeline.StepResult {
	cfg := bc.Config
	dir := filepath.Join(bc.Layout.Src, cfg.Assets.Dir)
	statusPath := filepath.Join(dir, cfg.Assets.StatusFile)

	status, err := ReadAssetStatus(statusPath)
	if err != nil {
		return pipeline.Fatal(fmt.Errorf("%w: %v", ErrAssetsNotReady, err))
	}
	if status != assetsDone {
		bc.Log.Error("assets", "check", "failure", "Asset bundle is not ready", "status", status, "file", statusPath)
		return pipeline.Fatal(fmt.Errorf("%w: %s reports status %q", ErrAssetsNotReady, cfg.Assets.StatusFile, status))
	}
	bc.Log.Info("assets", "check", "success", "Asset bundle status is done")

	if workspace.Exists(filepath.Join(dir, "node_modules")) {
		bc.Log.Debug("assets", "install", "progress", "node_modules present, npm install will reconcile it")
	}
	install := toolrun.Command{Name: cfg.Tools.Npm, Args: []string{"install"}, Dir: dir}
	if _, err := bc.ExecRetry(ctx, BuildAssets, install); err != nil {
		return pipeline.Failed(fmt.Errorf("npm install: %w", err))
	}

	cmd := toolrun.Command{Name: cfg.Tools.Webpack, Args: []string{"--config", cfg.Assets.WebpackConfig}, Dir: dir}
	if _, err := bc.Exec(ctx, BuildAssets, cmd); err != nil {
		return pipeline.Failed(fmt.Errorf("webpack: %w", err))
	}
	return pipeline.OK("production bundle built")
}
