package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/jward/strata"
	"github.com/jward/strata/internal/config"
	"github.com/jward/strata/internal/invocation"
	"github.com/jward/strata/internal/sourcekit"
)

var (
	flagDB          string
	flagFormat      string
	flagVerbose     bool
	flagInvocations string
	flagModule      string
	flagSourceKit   string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "strata",
	Short:         "Type-hierarchy and declaration queries over a Swift symbol graph",
	Long:          "Strata answers questions about a Swift codebase from its indexed symbol graph, falling back to compiler-backed probes when the graph alone cannot decide.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		cmd.SetContext(slogctx.NewCtx(cmd.Context(), newLogger(flagVerbose)))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDB, "db", "", "graph database path (default: "+config.DefaultDatabase+" relative to repo root)")
	pf.StringVar(&flagFormat, "format", "json", "output format: json|text")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")
	pf.StringVar(&flagInvocations, "invocations", "", "compile database with per-file compiler arguments")
	pf.StringVar(&flagModule, "module", "", "module name of the indexed code (default: graph metadata)")
	pf.StringVar(&flagSourceKit, "sourcekitten", "", "sourcekitten binary used for semantic queries")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(runCmd)
	for _, c := range queryCommands {
		rootCmd.AddCommand(c)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig reads .strata.yaml at the repo root and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	cfg, err := config.Load(repoRoot)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Database = absFrom(repoRoot, flagDB)
	}
	if flagInvocations != "" {
		cfg.Invocations = absFrom(cwd, flagInvocations)
	}
	if flagModule != "" {
		cfg.Module = flagModule
	}
	if flagSourceKit != "" {
		cfg.SourceKit.Binary = flagSourceKit
	}
	return cfg, nil
}

// openEngine opens the graph named by the config with every configured
// collaborator attached.
func openEngine(ctx context.Context) (*strata.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Database); errors.Is(err, os.ErrNotExist) {
		return nil, errors.Errorf("graph not found: %s (run 'strata import' first)", cfg.Database)
	}

	opts := []strata.Option{
		strata.WithSourceKit(sourcekit.NewClient(sourcekit.WithBinary(cfg.SourceKit.Binary))),
		strata.WithTerminalRoots(cfg.Probe.TerminalRoots...),
		strata.WithMaxProbeDepth(cfg.Probe.MaxDepth),
	}
	if cfg.Invocations != "" {
		tbl, err := invocation.LoadFile(cfg.Invocations)
		if err != nil {
			return nil, err
		}
		slogctx.Debug(ctx, "loaded compiler invocations", "path", cfg.Invocations, "files", tbl.Len())
		opts = append(opts, strata.WithInvocations(tbl))
	}
	if cfg.Module != "" {
		opts = append(opts, strata.WithModuleName(cfg.Module))
	}
	if cfg.Probe.ScratchDir != "" {
		opts = append(opts, strata.WithScratchDir(cfg.Probe.ScratchDir))
	}
	return strata.New(cfg.Database, opts...)
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

func absFrom(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
