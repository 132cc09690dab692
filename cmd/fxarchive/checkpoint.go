package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fxarchive/pkg/checkpoint"
	"fxarchive/pkg/logger"
	"fxarchive/pkg/ui"
)

// checkpointCmd represents the checkpoint command
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or reset the saved item list",
}

var checkpointInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the saved item list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := openCheckpoint(cmd)
		if err != nil {
			return err
		}

		info, err := cp.Info()
		if err != nil {
			return err
		}
		if info == nil {
			ui.PrintWarning("No checkpoint", cp.Path())
			return nil
		}
		ui.PrintInfo("Path", fmt.Sprint(info["path"]))
		ui.PrintInfo("Items", fmt.Sprint(info["items"]))
		ui.PrintInfo("Age", fmt.Sprint(info["age"]))
		return nil
	},
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved item list, keeping a timestamped backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := openCheckpoint(cmd)
		if err != nil {
			return err
		}

		backup, err := cp.Backup()
		if err != nil {
			return err
		}
		if err := cp.Delete(); err != nil {
			return err
		}
		if backup != "" {
			ui.PrintInfo("Backup", backup)
		}
		ui.PrintSuccess("Checkpoint cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointInfoCmd, checkpointClearCmd)
}

func openCheckpoint(cmd *cobra.Command) (*checkpoint.Manager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return checkpoint.NewManager(cfg.Output.CheckpointFile, logger.GetLogger())
}
