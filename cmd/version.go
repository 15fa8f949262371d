package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/B-Step62/mlflow-sub000/internal/config"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion() error {
	fmt.Printf("chartgen %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)

	// Configuration is informational here; a broken config file should
	// not break `version`.
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("\nConfiguration: unavailable (%v)\n", err)
		return nil
	}

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Server: %s\n", cfg.ServerAddr)
	fmt.Printf("  Store: %s\n", cfg.StoreBackend)
	fmt.Printf("  Client base URL: %s\n", cfg.Client.BaseURL)
	fmt.Printf("  Workers: %d\n", cfg.Generator.Workers)

	return nil
}
