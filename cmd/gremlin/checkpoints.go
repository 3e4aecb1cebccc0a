package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowgraph/gremlin/internal/app/services"
)

func newCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Inspect and prune stored checkpoints",
	}
	cmd.PersistentFlags().String("store", envOr("GREMLIN_CHECKPOINT_STORE", ""), "Checkpoint store: sqlite:<path> | postgres://...")

	list := &cobra.Command{
		Use:   "list [computation-id]",
		Short: "List the newest checkpoints",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCheckpointsList,
	}
	list.Flags().String("format", "text", "Output format: text | json")

	show := &cobra.Command{
		Use:   "show <checkpoint-id>",
		Short: "Print a checkpoint including its state",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheckpointsShow,
	}

	prune := &cobra.Command{
		Use:   "prune <computation-id>",
		Short: "Delete all but the newest checkpoints of a computation",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheckpointsPrune,
	}
	prune.Flags().Int("keep", 1, "Checkpoints to keep")

	cmd.AddCommand(list, show, prune)
	return cmd
}

func checkpointService(cmd *cobra.Command) (*services.CheckpointService, func(), error) {
	spec, _ := cmd.Flags().GetString("store")
	if spec == "" || spec == "memory" {
		return nil, nil, usageError("--store must name a persistent store")
	}
	saver, closeStore, err := openStore(cmd.Context(), spec)
	if err != nil {
		return nil, nil, err
	}
	return services.NewCheckpointService(saver), closeStore, nil
}

func runCheckpointsList(cmd *cobra.Command, args []string) error {
	service, closeStore, err := checkpointService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	computationID := ""
	if len(args) == 1 {
		computationID = args[0]
	}
	summaries, err := service.ListCheckpoints(cmd.Context(), computationID)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	case "text":
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCOMPUTATION\tPROGRAM\tSUPERSTEP\tTIME")
		for _, s := range summaries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.ComputationID, s.Program, s.Superstep, s.Timestamp.Format(time.RFC3339))
		}
		return tw.Flush()
	default:
		return usageError("invalid --format %q", format)
	}
}

func runCheckpointsShow(cmd *cobra.Command, args []string) error {
	service, closeStore, err := checkpointService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	cp, err := service.LoadCheckpoint(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(cp)
}

func runCheckpointsPrune(cmd *cobra.Command, args []string) error {
	service, closeStore, err := checkpointService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	keep, _ := cmd.Flags().GetInt("keep")
	removed, err := service.Prune(cmd.Context(), args[0], keep)
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d checkpoints\n", removed)
	return err
}
