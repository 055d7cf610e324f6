package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// tenantDropCmd represents the tenant drop command
var tenantDropCmd = &cobra.Command{
	Use:   "drop <tenant-id>",
	Short: "Drop the database of a deleted tenant",
	Long: `Drop the database of a deleted tenant.

Only tenants whose registry status is "deleted" can have their database
dropped. The registry row is kept.

Example:
  schoolctl tenant drop 42 --actor ops@example.org`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseTenantID(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		actor, _ := cmd.Flags().GetString("actor")
		if err := dropTenant(id, actor); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to drop tenant %d: %v\n", id, err)
			os.Exit(1)
		}
		fmt.Printf("Dropped database of tenant %d\n", id)
	},
}

func init() {
	tenantCmd.AddCommand(tenantDropCmd)
	tenantDropCmd.Flags().String("actor", "schoolctl", "Actor recorded in the audit trail")
}

func dropTenant(id int64, actor string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, stop := signalContext()
	defer stop()
	return a.Provisioner.Drop(ctx, id, actor)
}
