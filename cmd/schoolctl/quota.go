package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
)

// quotaCmd represents the quota command
var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and adjust tenant storage usage",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'quota' requires a subcommand (check, update)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

var quotaCheckCmd = &cobra.Command{
	Use:   "check <tenant-id> [category]",
	Short: "Show storage usage against the plan limit",
	Long: `Show storage usage against the plan limit.

Categories are database, files, backups, attachments and total (the
default).

Example:
  schoolctl quota check 42
  schoolctl quota check 42 files`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		id, category, err := quotaArgs(args)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := checkQuota(id, category); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to check quota: %v\n", err)
			os.Exit(1)
		}
	},
}

var quotaUpdateCmd = &cobra.Command{
	Use:   "update <tenant-id> <category> <delta-bytes>",
	Short: "Apply a usage delta to a storage category",
	Long: `Apply a usage delta to a storage category.

Positive deltas are refused when they would exceed the limit. Negative
deltas are always applied and never take usage below zero.

Example:
  schoolctl quota update 42 files 1048576
  schoolctl quota update 42 files -- -4096`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		id, category, err := quotaArgs(args[:2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		delta, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid delta %q\n", args[2])
			os.Exit(1)
		}
		err = updateQuota(id, category, delta)
		if errs.Is(err, errs.EQuotaExceeded) {
			fmt.Printf("Refused: %v\n", err)
			os.Exit(2)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to update usage: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Applied")
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.AddCommand(quotaCheckCmd)
	quotaCmd.AddCommand(quotaUpdateCmd)
}

func quotaArgs(args []string) (int64, model.StorageCategory, error) {
	id, err := parseTenantID(args[0])
	if err != nil {
		return 0, "", err
	}
	category := model.CategoryTotal
	if len(args) > 1 {
		category = model.StorageCategory(args[1])
	}
	if !category.Valid() {
		return 0, "", fmt.Errorf("unknown storage category %q", category)
	}
	return id, category, nil
}

func checkQuota(id int64, category model.StorageCategory) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, stop := signalContext()
	defer stop()

	st, err := a.Quota.CheckLimit(ctx, id, category)
	if err != nil {
		return err
	}
	return printJSON(st)
}

func updateQuota(id int64, category model.StorageCategory, delta int64) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, stop := signalContext()
	defer stop()
	_, err = a.Quota.UpdateUsage(ctx, id, category, delta)
	return err
}
