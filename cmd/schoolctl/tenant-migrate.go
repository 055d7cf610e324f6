package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// tenantMigrateCmd represents the tenant migrate command
var tenantMigrateCmd = &cobra.Command{
	Use:   "migrate <tenant-id>",
	Short: "Bring one tenant database up to the catalog version",
	Long: `Bring one tenant database up to the catalog version.

Missing tables and columns are created, absent seed rows are inserted and
the tenant's migration version is stamped when every table succeeded.

Example:
  schoolctl tenant migrate 42`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseTenantID(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := migrateTenant(id); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to migrate tenant %d: %v\n", id, err)
			os.Exit(1)
		}
	},
}

// tenantMigrateAllCmd represents the tenant migrate-all command
var tenantMigrateAllCmd = &cobra.Command{
	Use:   "migrate-all",
	Short: "Migrate every trial, active and suspended tenant",
	Long: `Migrate every trial, active and suspended tenant.

Tenants are migrated concurrently, bounded by migration_concurrency. A
failing tenant never stops the others; the command exits non-zero when
any tenant failed.

Example:
  schoolctl tenant migrate-all`,
	Run: func(cmd *cobra.Command, args []string) {
		failed, err := migrateAllTenants()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to migrate tenants: %v\n", err)
			os.Exit(1)
		}
		if failed > 0 {
			fmt.Fprintf(os.Stderr, "%d tenant(s) failed to migrate\n", failed)
			os.Exit(1)
		}
	},
}

func init() {
	tenantCmd.AddCommand(tenantMigrateCmd)
	tenantCmd.AddCommand(tenantMigrateAllCmd)
}

func migrateTenant(id int64) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, stop := signalContext()
	defer stop()

	res, err := a.Migrator.MigrateTenant(ctx, id)
	if res != nil {
		if perr := printJSON(res); perr != nil {
			return perr
		}
	}
	return err
}

func migrateAllTenants() (int, error) {
	a, err := openApp()
	if err != nil {
		return 0, err
	}
	defer closeApp(a)

	ctx, stop := signalContext()
	defer stop()

	summary, err := a.Migrator.MigrateAll(ctx)
	if summary == nil {
		return 0, err
	}
	if perr := printJSON(summary); perr != nil {
		return 0, perr
	}
	return summary.Failed, err
}
