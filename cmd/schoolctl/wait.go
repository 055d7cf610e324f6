package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
)

// waitCmd represents the wait command
var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until the registry and the server report healthy",
	Long: `Poll GET /healthz until it answers 200, which the server only does once
the registry database is reachable.

Example:
  schoolctl wait
  schoolctl wait --port 3000 --timeout 2m`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if err := waitHealthy(ctx, fmt.Sprintf("http://localhost:%d/healthz", port), time.Second); err != nil {
			return fmt.Errorf("server not healthy after %s: %w", timeout, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "server is healthy")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().IntP("port", "p", defaultPortInt(), "Server port to check")
	waitCmd.Flags().DurationP("timeout", "t", 90*time.Second, "How long to keep polling")
}

// waitHealthy polls url every interval until it answers 200 or ctx ends.
func waitHealthy(ctx context.Context, url string, interval time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	check := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("healthz returned %d", resp.StatusCode)
		}
		return nil
	}
	return backoff.Retry(check, backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
}
