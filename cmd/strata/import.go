package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/jward/strata/internal/store"
)

var flagForce bool

var importCmd = &cobra.Command{
	Use:   "import <fixture.yaml>",
	Short: "Load a YAML symbol-graph fixture into a new graph database",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().BoolVar(&flagForce, "force", false, "replace an existing graph database")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return outputError("import", err)
	}
	dbPath := cfg.Database

	f, err := os.Open(args[0])
	if err != nil {
		return outputError("import", errors.Errorf("opening fixture: %w", err))
	}
	defer f.Close()
	fixture, err := store.ParseFixture(f)
	if err != nil {
		return outputError("import", err)
	}

	if _, err := os.Stat(dbPath); err == nil {
		if !flagForce {
			return outputError("import", errors.Errorf("graph already exists: %s (use --force to replace it)", dbPath))
		}
		if err := os.Remove(dbPath); err != nil {
			return outputError("import", errors.Errorf("removing graph for --force: %w", err))
		}
		slogctx.Info(ctx, "cleared graph", "path", dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return outputError("import", errors.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
	}

	s, err := store.NewStore(dbPath)
	if err != nil {
		return outputError("import", err)
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return outputError("import", err)
	}
	if err := s.ImportFixture(fixture); err != nil {
		return outputError("import", err)
	}

	return outputResult(CLIResult{
		Command: "import",
		Results: CLIImportSummary{
			Database:    dbPath,
			Module:      fixture.Module,
			Symbols:     len(fixture.Symbols),
			Occurrences: len(fixture.Occurrences),
		},
	})
}
