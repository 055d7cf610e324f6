package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/schoolhost/pkg/server/middleware"
)

// adminTokenCmd represents the admin-token command
var adminTokenCmd = &cobra.Command{
	Use:   "admin-token <subject>",
	Short: "Issue a bearer token for the admin API",
	Long: `Issue a bearer token for the admin API.

The token is signed with SCHOOLHOST_ADMIN_TOKEN_SECRET and printed to
STDOUT.

Example:
  schoolctl admin-token ops@example.org --ttl 1h`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := issueAdminToken(args[0], ttl)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
	},
}

func init() {
	rootCmd.AddCommand(adminTokenCmd)
	adminTokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
}

func issueAdminToken(subject string, ttl time.Duration) (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	return middleware.NewAdminAuthenticator(cfg.AdminTokenSecret, nil).Issue(subject, ttl)
}
