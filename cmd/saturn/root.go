package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "saturn",
	Short: "Saturn - tiered admission gateway for the Clubline API",
	Long: `Saturn is the admission gateway for the Clubline API platform.

Every request is judged against the caller's subscription tier:
  - Cost-weighted hourly and per-minute sliding-window quotas
  - Concurrent request caps
  - Billed overage for entitled subscriptions
  - Per-identity limit exceptions with validity windows

Decisions are recorded in a durable usage ledger and exposed as
Prometheus metrics.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "saturn.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
