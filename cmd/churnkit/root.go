package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "churnkit",
		Short: "churnkit - adaptive churn prediction and retention recommendations",
		Long: `churnkit maps arbitrary customer datasets onto a churn schema, trains and
applies churn models, detects churn signals and recommends retention actions.

Project settings are read from .churnkit.yaml, searched from --project-dir
upwards.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("project-dir", ".", "Directory to start the .churnkit.yaml search from")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newMapCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newTrainCommand())
	cmd.AddCommand(newPredictCommand())
	cmd.AddCommand(newSmartCommand())
	cmd.AddCommand(newRegistryCommand())
	cmd.AddCommand(newCacheCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
