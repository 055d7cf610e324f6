package main

import (
	"github.com/spf13/cobra"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the registry database",
	Long:  `Apply, roll back and inspect the registry schema migrations.`,
	RunE:  requireSubcommand,
}

func init() {
	rootCmd.AddCommand(dbCmd)
}
