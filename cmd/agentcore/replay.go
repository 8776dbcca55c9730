package main

import (
	"fmt"

	"github.com/corebrain/agentcore/internal/replay"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// buildReplayCmd creates the "replay" command group for inspecting
// persisted execution traces.
//
// Grounded on the teacher's commands_trace.go command group shape
// (validate/stats/replay subcommands over a JSONL trace file), adapted to
// the Store-backed, cursor-driven replay.Engine instead of a flat JSONL
// stream.
func buildReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Inspect and step through persisted execution traces",
	}
	cmd.AddCommand(
		buildReplayListCmd(),
		buildReplayTimelineCmd(),
		buildReplaySnapshotCmd(),
	)
	return cmd
}

func buildReplayListCmd() *cobra.Command {
	var traceFile, backend string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List traces in a trace store",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTraceStore(traceFile, backend)
			if err != nil {
				return fmt.Errorf("replay list: %w", err)
			}
			defer store.Close()
			out := cmd.OutOrStdout()
			traces := store.List()
			if len(traces) == 0 {
				fmt.Fprintln(out, "No traces found.")
				return nil
			}
			for _, t := range traces {
				status := "in progress"
				if t.Success != nil {
					if *t.Success {
						status = "succeeded"
					} else {
						status = "failed"
					}
				}
				fmt.Fprintf(out, "%s  %-12s %d events  %q\n", t.TraceID, status, len(t.Events), t.Goal)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&traceFile, "trace-file", "f", "traces.json", "Path to the trace store file")
	cmd.Flags().StringVar(&backend, "backend", "json", "Trace store backend (json or sqlite)")
	return cmd
}

func buildReplayTimelineCmd() *cobra.Command {
	var traceFile, backend string
	cmd := &cobra.Command{
		Use:   "timeline <trace-id>",
		Short: "Print the full timeline of a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(traceFile, backend, args[0])
			if err != nil {
				return fmt.Errorf("replay timeline: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, entry := range engine.Timeline() {
				marker := "  "
				if entry.IsCurrent {
					marker = "->"
				}
				fmt.Fprintf(out, "%s [%4d] +%6dms %s\n", marker, entry.Sequence, entry.ElapsedMS, entry.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&traceFile, "trace-file", "f", "traces.json", "Path to the trace store file")
	cmd.Flags().StringVar(&backend, "backend", "json", "Trace store backend (json or sqlite)")
	return cmd
}

func buildReplaySnapshotCmd() *cobra.Command {
	var (
		traceFile string
		backend   string
		position  int
	)
	cmd := &cobra.Command{
		Use:   "snapshot <trace-id>",
		Short: "Show cumulative usage/cost at a cursor position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(traceFile, backend, args[0])
			if err != nil {
				return fmt.Errorf("replay snapshot: %w", err)
			}
			if position > 0 {
				if _, err := engine.Seek(position); err != nil {
					return fmt.Errorf("replay snapshot: %w", err)
				}
			} else {
				engine.FastForward()
			}
			snap := engine.Snapshot()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "position:   %d / %d (%.1f%%)\n", snap.Position, snap.TotalEvents, snap.ProgressPct)
			fmt.Fprintf(out, "tokens:     %d input, %d output\n", snap.CumulativeUsage.InputTokens, snap.CumulativeUsage.OutputTokens)
			fmt.Fprintf(out, "cost:       $%.6f\n", snap.CumulativeCost.Total())
			if snap.CurrentEvent != nil {
				fmt.Fprintf(out, "event:      %s\n", snap.CurrentEvent.Kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&traceFile, "trace-file", "f", "traces.json", "Path to the trace store file")
	cmd.Flags().StringVar(&backend, "backend", "json", "Trace store backend (json or sqlite)")
	cmd.Flags().IntVar(&position, "position", 0, "Cursor position to seek to before snapshotting (0 = end)")
	return cmd
}

func loadEngine(traceFile, backend, traceID string) (*replay.Engine, error) {
	id, err := uuid.Parse(traceID)
	if err != nil {
		return nil, fmt.Errorf("invalid trace id %q: %w", traceID, err)
	}
	store, err := openTraceStore(traceFile, backend)
	if err != nil {
		return nil, err
	}
	return replay.FromStore(store, id)
}
