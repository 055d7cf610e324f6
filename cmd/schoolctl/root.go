package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "schoolctl",
	Short: "School platform tenancy core",
	Long: `Run and administer the tenancy core of the school platform.

Configuration is read from /etc/schoolhost/config/schoolhost.yml (or
SCHOOLHOST_CONFIG_PATH), a .env file and the environment.`,
}

// requireSubcommand is the RunE of command groups invoked on their own.
func requireSubcommand(cmd *cobra.Command, _ []string) error {
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	_ = cmd.Help()
	return fmt.Errorf("%s requires a subcommand (%s)", cmd.Name(), strings.Join(names, ", "))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
