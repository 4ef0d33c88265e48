package steps

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"release-tools/go/pkg/config"
)

// initUpstream creates a repository with one commit on master and a second
// commit on the release branch.
func initUpstream(t *testing.T, branch string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	sig := &object.Signature{Name: "release", Email: "release@example.com", When: time.Now()}

	writeFile(t, filepath.Join(dir, "README"), "master")
	_, err = wt.Add("README")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(branch), Create: true}))
	writeFile(t, filepath.Join(dir, "assets", "webpack-stats.json"), `{"status":"done"}`)
	_, err = wt.Add("assets/webpack-stats.json")
	require.NoError(t, err)
	_, err = wt.Commit("bundle", &git.CommitOptions{Author: sig})
	require.NoError(t, err)
	return dir
}

func TestGitCloner_ClonesPinnedBranch(t *testing.T) {
	if _, err := exec.LookPath("git-upload-pack"); err != nil {
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("git transport binaries not available")
		}
	}
	upstream := initUpstream(t, "bench_v2")
	dest := filepath.Join(t.TempDir(), "src")

	cloner := &GitCloner{}
	err := cloner.Clone(context.Background(), dest, config.SourceConfig{Path: upstream, Branch: "bench_v2"})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dest, "assets", "webpack-stats.json"))
	status, err := ReadAssetStatus(filepath.Join(dest, "assets", "webpack-stats.json"))
	require.NoError(t, err)
	assert.Equal(t, "done", status)

	repo, err := git.PlainOpen(dest)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, plumbing.NewBranchReferenceName("bench_v2"), head.Name())
}

func TestGitCloner_UnknownBranch(t *testing.T) {
	upstream := initUpstream(t, "bench_v2")
	dest := filepath.Join(t.TempDir(), "src")

	err := (&GitCloner{}).Clone(context.Background(), dest, config.SourceConfig{Path: upstream, Branch: "no-such-branch"})
	assert.Error(t, err)
}

func TestNewGitCloner_IsShallow(t *testing.T) {
	assert.Equal(t, 1, NewGitCloner(nil).Depth)
}
