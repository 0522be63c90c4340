package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type healthcheckOptions struct {
	url     string
	timeout time.Duration
}

// readinessResponse mirrors the /readyz body.
type readinessResponse struct {
	Status string `json:"status"`
}

func newHealthcheckCommand() *cobra.Command {
	opts := &healthcheckOptions{}
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the running server's readiness endpoint",
		Long: `Call /readyz and exit non-zero unless the server reports ready.
Intended for container HEALTHCHECK instructions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := opts.url
			if url == "" {
				port := os.Getenv("SERVER_PORT")
				if port == "" {
					port = "8080"
				}
				url = fmt.Sprintf("http://localhost:%s/readyz", port)
			}
			return checkReadiness(cmd.Context(), url, opts.timeout)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "readiness URL (default: http://localhost:$SERVER_PORT/readyz)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func checkReadiness(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body readinessResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("invalid health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ready" {
		return fmt.Errorf("not ready: status %d (%s)", resp.StatusCode, body.Status)
	}
	return nil
}
