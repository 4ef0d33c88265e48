package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"release-tools/go/pkg/config"
	"release-tools/go/pkg/logbowl"
	"release-tools/go/pkg/pipeline"
	"release-tools/go/pkg/steps"
	"release-tools/go/pkg/toolrun"
	"release-tools/go/pkg/workspace"
)

// LogFileName is the per-run log written under the workspace root.
const LogFileName = "build.log"

var (
	log logbowl.Logger

	rootDir    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "release-builder",
	Short: "Builds a release: source snapshot, web assets, environments, launcher, wheels and installer.",
	Long: `Runs the release pipeline against the workspace in --root.

Steps run in a fixed order and skip work whose output is already present,
so an interrupted run can simply be started again.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logbowl.Create("release-builder")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := runRelease(ctx, runOptions{
			Root:    rootDir,
			Config:  configPath,
			Runner:  toolrun.NewExec(),
			Cloner:  steps.NewGitCloner(os.Stdout),
			Console: os.Stdout,
		})
		if err != nil {
			return err
		}
		summary.Print(cmd.OutOrStdout())
		return summary.Err()
	},
}

func init() {
	rootCmd.Flags().StringVar(&rootDir, "root", ".", "Workspace root holding the manifests, launcher sources, temp/ and dist/.")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to the release config (default <root>/release.yml).")
}

type runOptions struct {
	Root    string
	Config  string
	Runner  toolrun.Runner
	Cloner  steps.Cloner
	Console io.Writer
}

// runRelease prepares the workspace and runs every step. The returned error
// covers setup problems only; step failures are reported in the Summary.
func runRelease(ctx context.Context, opts runOptions) (pipeline.Summary, error) {
	layout, err := workspace.New(opts.Root)
	if err != nil {
		return pipeline.Summary{}, err
	}
	cfgPath := opts.Config
	if cfgPath == "" {
		cfgPath = filepath.Join(layout.Root, config.DefaultConfigFile)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Summary{}, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}
	p, err := steps.Build(cfg, opts.Cloner)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	lock, err := layout.Lock()
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer lock.Close()

	runLog, err := logbowl.NewWithFile("release-builder", filepath.Join(layout.Root, LogFileName), opts.Console)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer runLog.Close()

	runLog.Info("config", "read", "success", "Configuration loaded", "path", cfgPath,
		"app", cfg.Application.Name, "version", cfg.Application.Version, "branch", cfg.Source.Branch)
	if err := layout.Prepare(); err != nil {
		runLog.Error("workspace", "init", "error", "Could not prepare workspace", "error", err)
		return pipeline.Summary{}, err
	}
	runLog.Info("workspace", "init", "success", "Workspace ready", "root", layout.Root, "dist", layout.Dist)

	bc := &pipeline.BuildContext{
		Log:    runLog,
		Layout: layout,
		Config: cfg,
		Runner: opts.Runner,
		Timer:  pipeline.NewTimer(),
	}
	summary := p.Run(ctx, bc)
	summary.Log(runLog)
	return summary, nil
}

// Execute runs the root command and exits nonzero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if log.Logger != nil {
			log.Error("system", "stop", "error", "release-builder failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
