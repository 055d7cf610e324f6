package main

import (
	"github.com/spf13/cobra"
)

// configurationCmd represents the configuration command
var configurationCmd = &cobra.Command{
	Use:   "configuration",
	Short: "Inspect schoolhost configuration",
	Long:  `Print the effective configuration or follow changes to the config file.`,
	RunE:  requireSubcommand,
}

func init() {
	rootCmd.AddCommand(configurationCmd)
}
