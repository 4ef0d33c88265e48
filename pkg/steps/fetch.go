package steps

import (
	"context"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"release-tools/go/pkg/config"
	"release-tools/go/pkg/pipeline"
	"release-tools/go/pkg/toolrun"
	"release-tools/go/pkg/workspace"
)

// Cloner fetches a pinned branch of a repository into dir.
type Cloner interface {
	Clone(ctx context.Context, dir string, src config.SourceConfig) error
}

// GitCloner clones in-process with go-git.
type GitCloner struct {
	// Depth limits fetched history. Zero fetches everything.
	Depth    int
	Progress io.Writer
}

// NewGitCloner returns a shallow, single-commit cloner.
func NewGitCloner(progress io.Writer) *GitCloner {
	return &GitCloner{Depth: 1, Progress: progress}
}

// Clone implements Cloner.
func (g *GitCloner) Clone(ctx context.Context, dir string, src config.SourceConfig) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           src.URL(),
		ReferenceName: plumbing.NewBranchReferenceName(src.Branch),
		SingleBranch:  true,
		Depth:         g.Depth,
		Tags:          git.NoTags,
		Progress:      g.Progress,
	})
	return err
}

// Fetch checks out the pinned source snapshot into the source dir.
type Fetch struct {
	Cloner Cloner
}

func (s *Fetch) Name() string { return FetchSource }

func (s *Fetch) Run(ctx context.Context, bc *pipeline.BuildContext) pipeline.StepResult {
	dir := bc.Layout.Src
	present, err := workspace.IsNonEmptyDir(dir)
	if err != nil {
		return pipeline.Fatal(fmt.Errorf("inspect %s: %w", dir, err))
	}
	if present {
		return pipeline.Skipped("source checkout present")
	}

	src := bc.Source()
	bc.Log.Info("source", "clone", "progress", "Cloning source", "url", src.URL(), "branch", src.Branch)
	if timeout := bc.Config.TimeoutFor(FetchSource); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err = toolrun.Retry(ctx, bc.RetryPolicy(), func(attempt int) error {
		if attempt > 1 {
			bc.Log.Warn("source", "retry", "retry", "Retrying clone", "attempt", attempt)
		}
		err := s.Cloner.Clone(ctx, dir, src)
		if err != nil {
			// A half-written checkout would satisfy the skip check next run.
			if clearErr := workspace.ClearDir(dir); clearErr != nil {
				bc.Log.Error("source", "clean", "error", "Could not remove partial checkout", "dir", dir, "error", clearErr)
			}
		}
		return err
	})
	if err != nil {
		return pipeline.Fatal(fmt.Errorf("clone %s@%s: %w", src.URL(), src.Branch, err))
	}
	return pipeline.OK("cloned " + src.URL() + "@" + src.Branch)
}
