// Package cmd provides the CLI commands for scaffsync.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scaffsync/scaffsync/internal/config"
	"github.com/scaffsync/scaffsync/internal/engine"
	"github.com/scaffsync/scaffsync/internal/logging"
	"github.com/scaffsync/scaffsync/internal/state"
	"github.com/scaffsync/scaffsync/pkg/version"
)

var (
	projectDir string
	debugMode  bool
)

// NewRootCmd creates the root command for the scaffsync CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scaffsync",
		Short: "Keep scaffolded projects in sync with their template",
		Long: `scaffsync reconciles a project workspace against the scaffold template
it was generated from. It detects what changed on each side, proposes a
plan, and applies it only behind an explicit confirmation, with every
touched file snapshotted for rollback.

The default for every run is a dry run: nothing changes until you say so.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("scaffsync version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&projectDir, "project", "", "Project directory (default: walk up from the working directory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to .scaffsync/logs/")

	cmd.AddCommand(
		newInitCmd(),
		newSyncCmd(),
		newDeclutterCmd(),
		newRollbackCmd(),
		newResolveCmd(),
		newRunsCmd(),
		newUnlockCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// app bundles everything a project-scoped command needs.
type app struct {
	root    string
	cfg     *config.Config
	store   *state.Store
	engine  *engine.Engine
	log     *slog.Logger
	cleanup func()
}

// newApp locates the project, loads configuration, opens the metadata
// store, and wires the engine.
func newApp() (*app, error) {
	start := projectDir
	if start == "" {
		start = "."
	}

	root, err := config.FindProjectRoot(start)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	dataDir := config.DataDir(root)
	if err := os.MkdirAll(filepath.Join(dataDir, "logs"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	logCfg := logging.DefaultConfig(dataDir)
	logCfg.Level = cfg.Logging.Level
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = cfg.Logging.MaxBackups
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg = logging.DebugConfig(dataDir)
	}
	log, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}

	store, err := state.Open(filepath.Join(dataDir, "state.db"))
	if err != nil {
		logCleanup()
		return nil, err
	}

	eng, err := engine.New(root, cfg, store, log)
	if err != nil {
		_ = store.Close()
		logCleanup()
		return nil, err
	}

	return &app{
		root:   root,
		cfg:    cfg,
		store:  store,
		engine: eng,
		log:    log,
		cleanup: func() {
			_ = store.Close()
			logCleanup()
		},
	}, nil
}

// discardLogger is used by commands that run before a project exists.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
