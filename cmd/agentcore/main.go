// Command agentcore is a thin demonstration harness around the core
// packages: it wires a Brain to a tool Registry/Executor, runs a
// single-turn completion, and lets a recorded execution trace be replayed
// or a model's pricing looked up. None of the core's invariants live
// here; this binary only assembles them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agentcore",
		Short:        "Run and inspect agent tasks",
		Version:      fmt.Sprintf("%s", version),
		SilenceUsage: true,
	}
	root.AddCommand(
		buildRunCmd(),
		buildReplayCmd(),
		buildPricingCmd(),
	)
	return root
}
