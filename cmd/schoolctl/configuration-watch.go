package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/schoolhost/pkg/config"
)

// configurationWatchCmd represents the configuration watch command
var configurationWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the configuration whenever the config file changes",
	Long: `Print the configuration whenever the config file changes.

Invalid changes are reported and ignored, exactly as a running server
treats them.

Example:
  schoolctl configuration watch`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := watchConfiguration(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to watch configuration: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	configurationCmd.AddCommand(configurationWatchCmd)
}

func watchConfiguration() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("Watching %s for configuration changes\n", cfg.ConfigFilePath())
	return config.Watch(ctx, cfg.ConfigFilePath(), logger, func(next *config.Config) {
		fmt.Print(next.FormatText())
	})
}
