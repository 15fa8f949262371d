// Package cmd provides CLI commands for chartgen.
//
// Commands:
//   - serve: HTTP API server with the generation worker pool
//   - generate: submit a prompt and poll until the chart is ready
//   - status: inspect a generation request
//   - charts: list and delete saved charts
//
// Signal handling and graceful shutdown are implemented
// for all commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/B-Step62/mlflow-sub000/internal/client"
	"github.com/B-Step62/mlflow-sub000/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "chartgen",
	Short: "AI-assisted chart generation for experiment tracking",
	Long: `chartgen turns natural-language prompts into renderable charts over
experiment tracking data. Run "chartgen serve" to host the API, or
"chartgen generate" to drive a request from the terminal.`,
	SilenceUsage: true,
}

var serverFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "",
		"API base URL for client commands (overrides client.base_url)")
}

// newAPIClient builds the API client from loaded configuration. The
// --server flag, when set, overrides the configured base URL.
func newAPIClient() (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	baseURL := cfg.Client.BaseURL
	if serverFlag != "" {
		baseURL = serverFlag
	}

	c, err := client.New(client.Config{
		BaseURL:      baseURL,
		PollInterval: cfg.Client.PollInterval(),
		MaxAttempts:  cfg.Client.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return c, nil
}

// Execute is the main entry point for the chartgen CLI application.
func Execute() error {
	// Initialize logger once at entry point. Subcommands that load
	// configuration replace it with the configured handler.
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return rootCmd.Execute()
}
