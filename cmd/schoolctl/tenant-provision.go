package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/schoolhost/pkg/provision"
)

// tenantProvisionCmd represents the tenant provision command
var tenantProvisionCmd = &cobra.Command{
	Use:   "provision <tenant-id>",
	Short: "Create the database of a pending tenant",
	Long: `Create the database of a pending tenant.

This command creates the tenant database, every catalog table, the seed
rows and the initial school administrator, then moves the tenant to its
trial. The password is read from SCHOOLHOST_ADMIN_PASSWORD or, with
--password-stdin, from the first line of standard input.

Example:
  schoolctl tenant provision 42 --name "Ada Admin" --email ada@example.org \
      --phone +15550100 --password-stdin < password.txt`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseTenantID(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		admin := provision.Admin{}
		admin.Name, _ = cmd.Flags().GetString("name")
		admin.Email, _ = cmd.Flags().GetString("email")
		admin.Phone, _ = cmd.Flags().GetString("phone")
		fromStdin, _ := cmd.Flags().GetBool("password-stdin")

		if admin.Password, err = readPassword(fromStdin); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read password: %v\n", err)
			os.Exit(1)
		}

		if err := provisionTenant(provision.Request{TenantID: id, Admin: admin, ClientIP: "cli"}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to provision tenant %d: %v\n", id, err)
			os.Exit(1)
		}
	},
}

func init() {
	tenantCmd.AddCommand(tenantProvisionCmd)
	tenantProvisionCmd.Flags().String("name", "", "Administrator name")
	tenantProvisionCmd.Flags().String("email", "", "Administrator email")
	tenantProvisionCmd.Flags().String("phone", "", "Administrator phone")
	tenantProvisionCmd.Flags().Bool("password-stdin", false, "Read the administrator password from stdin")
}

func readPassword(fromStdin bool) (string, error) {
	if !fromStdin {
		return os.Getenv("SCHOOLHOST_ADMIN_PASSWORD"), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func provisionTenant(req provision.Request) error {
	// Fail before connecting anywhere.
	if err := req.Validate(); err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, stop := signalContext()
	defer stop()

	res, err := a.Provisioner.Provision(ctx, req)
	if res != nil {
		if perr := printJSON(res); perr != nil {
			return perr
		}
	}
	return err
}
