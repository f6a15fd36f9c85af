package main

import (
	"fmt"
	"sort"
	"strconv"

	"fcsync/pkg/config"
	"fcsync/pkg/logger"
	"fcsync/pkg/models"
	"fcsync/pkg/ui"

	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or reset per-channel sync progress",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored checkpoints",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointShow,
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset <channel-id>",
	Short: "Forget a channel's progress so the next sync starts over",
	Long: `Forget a channel's progress so the next sync walks its whole feed.

Files already on disk are kept and are not downloaded again.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckpointReset,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointResetCmd)

	checkpointCmd.PersistentFlags().StringVar(&checkpointFile, "checkpoint-file", "", "checkpoint file (default: platform data directory)")
}

func loadCheckpointConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := globalFlags()
	if cmd.Flags().Changed("checkpoint-file") {
		flags["checkpoint-file"] = checkpointFile
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func runCheckpointShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadCheckpointConfig(cmd)
	if err != nil {
		return err
	}
	store, err := checkpointStore(cfg, logger.NewNopLogger())
	if err != nil {
		return err
	}

	checkpoints, err := store.Load()
	if err != nil {
		return err
	}

	ui.PrintInfo("Checkpoint file", store.Path())
	if len(checkpoints) == 0 {
		fmt.Println("No checkpoints stored")
		return nil
	}

	ids := make([]int64, 0, len(checkpoints))
	for id := range checkpoints {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fmt.Println()
	for _, id := range ids {
		fmt.Println(formatCheckpoint(id, checkpoints[id]))
	}
	return nil
}

func formatCheckpoint(id int64, cp models.Checkpoint) string {
	synced := "never"
	if cp.LastSynced != nil {
		synced = models.FormatTimestamp(*cp.LastSynced)
	}
	return fmt.Sprintf("  %-8d %-30s %-20s %6d  %s", id, cp.Fanclub, cp.Username, cp.Price, synced)
}

func runCheckpointReset(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid channel id %q", args[0])
	}

	cfg, err := loadCheckpointConfig(cmd)
	if err != nil {
		return err
	}
	store, err := checkpointStore(cfg, logger.NewNopLogger())
	if err != nil {
		return err
	}

	existed, err := store.Reset(id)
	if err != nil {
		return err
	}
	if !existed {
		ui.PrintWarning("No checkpoint stored for channel", args[0])
		return nil
	}
	ui.PrintSuccess("Checkpoint reset for channel " + args[0])
	return nil
}
