package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var dryRun bool
	var debug bool

	rootCmd := &cobra.Command{
		Use:           "uhfremuxd",
		Short:         "Watches for finished recordings and remuxes them into a media library",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), configFlag, dryRun, debug)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Force debug log level")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log intended actions without remuxing or contacting Plex")

	rootCmd.AddCommand(newJobsCommand(&configFlag))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
