package steps

import (
	"context"
	"fmt"
	"path/filepath"

	"release-tools/go/pkg/pipeline"
	"release-tools/go/pkg/release"
)

// Archive bundles the distribution dir into a checksummed, optionally
// signed release archive.
type Archive struct{}

func (s *Archive) Name() string { return ArchiveRelease }

func (s *Archive) Run(_ context.Context, bc *pipeline.BuildContext) pipeline.StepResult {
	cfg := bc.Config
	l := bc.Layout
	path := filepath.Join(l.Dist, release.ArchiveName(cfg.Application.Name, cfg.Application.Version))

	files, err := release.Pack(bc.Log, path, l.Dist, cfg.Archive.Exclude)
	if err != nil {
		return pipeline.Failed(err)
	}
	bc.Log.Info("archive", "pack", "success", "Release archive written", "file", path, "entries", len(files))

	sum, err := release.WriteChecksum(path)
	if err != nil {
		return pipeline.Failed(fmt.Errorf("write checksum: %w", err))
	}
	bc.Log.Info("archive", "write", "success", "Checksum written", "sha256", sum)

	if cfg.Archive.SigningKey == "" {
		return pipeline.OK(filepath.Base(path))
	}
	keyPath := cfg.Archive.SigningKey
	if !filepath.IsAbs(keyPath) {
		keyPath = filepath.Join(l.Root, keyPath)
	}
	key, err := release.LoadPrivateKey(keyPath)
	if err != nil {
		return pipeline.Failed(fmt.Errorf("load signing key: %w", err))
	}
	sigPath, err := release.SignFile(path, key)
	if err != nil {
		return pipeline.Failed(err)
	}
	bc.Log.Info("signing", "sign", "success", "Archive signed", "signature", sigPath)
	return pipeline.OK(filepath.Base(path) + " (signed)")
}
