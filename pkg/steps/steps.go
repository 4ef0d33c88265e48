// Package steps implements the release pipeline's build steps. Each step
// checks the filesystem first and reports skipped-already-done when its
// output is already in place.
package steps

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"release-tools/go/pkg/config"
	"release-tools/go/pkg/pipeline"
)

// Step names, in execution order.
const (
	FetchSource    = "fetch-source"
	BuildAssets    = "build-assets"
	ServerEnv      = "server-env"
	LauncherEnv    = "launcher-env"
	BuildLauncher  = "build-launcher"
	VendWheels     = "vend-wheels"
	PackageServer  = "package-server"
	ArchiveRelease = "archive-release"
)

var defaultPolicies = map[string]string{
	VendWheels: config.PolicyWarnAndContinue,
}

// DefaultPolicy returns the failure policy a step uses unless configured.
func DefaultPolicy(step string) string {
	if p, ok := defaultPolicies[step]; ok {
		return p
	}
	return config.PolicyAbortOnFailure
}

// Build assembles the release pipeline for cfg. The archive step is only
// added when archiving is enabled.
func Build(cfg *config.Config, cloner Cloner) (*pipeline.Pipeline, error) {
	list := []pipeline.Step{
		&Fetch{Cloner: cloner},
		&Assets{},
		NewServerEnv(),
		NewLauncherEnv(),
		&Launcher{},
		&Wheels{},
		&Server{},
	}
	if cfg.Archive.Enabled {
		list = append(list, &Archive{})
	}

	p := pipeline.New()
	for _, s := range list {
		policy, err := pipeline.ParsePolicy(cfg.PolicyFor(s.Name(), DefaultPolicy(s.Name())))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
		p.Add(s, policy)
	}
	return p, nil
}

// globFiles returns the regular files under dir matching any pattern, as
// sorted slash-separated paths relative to dir.
func globFiles(dir string, patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	fsys := os.DirFS(dir)
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(m)))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func joinItems(items []string) string {
	return strings.Join(items, ", ")
}
