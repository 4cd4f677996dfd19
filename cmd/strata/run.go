package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/jward/strata/internal/runtime"
)

var runCmd = &cobra.Command{
	Use:   "run <script.risor> [args...]",
	Short: "Run a batch-query script against the graph",
	Long:  "Runs a Risor script with the query functions available as globals. Remaining arguments are exposed as the list 'args'. Sibling .risor files can be imported. The script's final value is printed.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	script, err := filepath.Abs(args[0])
	if err != nil {
		return outputError("run", errors.Errorf("resolving script path %q: %w", args[0], err))
	}

	e, err := openEngine(ctx)
	if err != nil {
		return outputError("run", err)
	}
	defer e.Close()

	scriptArgs := make([]any, 0, len(args)-1)
	for _, a := range args[1:] {
		scriptArgs = append(scriptArgs, a)
	}

	rt := runtime.NewRuntime(e, filepath.Dir(script))
	res, err := rt.RunScript(ctx, filepath.Base(script), map[string]any{"args": scriptArgs})
	if err != nil {
		return outputError("run", err)
	}
	return outputResult(CLIResult{Command: "run", Results: res})
}
