package cmd

import (
	"log"

	"github.com/josephlewis42/dash/core/config"
	"github.com/spf13/cobra"
)

// initCmd writes the default configuration
var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Write the default configuration to DIR or the current directory.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		logger := log.New(cmd.ErrOrStderr(), "", 0)
		return config.Initialize(dir, logger)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
