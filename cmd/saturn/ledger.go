package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"clubline-hq/saturn/pkg/config"
	"clubline-hq/saturn/pkg/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the usage ledger",
	Long:  `Query and maintain the durable per-request usage ledger.`,
}

var ledgerListFlags struct {
	identity string
	limit    int
	format   string
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent usage records",
	Long: `List usage records, newest first.

Examples:
  # Last 20 records across all identities
  saturn ledger list

  # Records for one identity
  saturn ledger list --identity user:42 --limit 50

  # Machine-readable output
  saturn ledger list --format json`,
	RunE: ledgerList,
}

var ledgerPruneFlags struct {
	olderThan time.Duration
}

var ledgerPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records older than a cutoff",
	Long: `Delete ledger records older than the given age.

Examples:
  # Drop everything older than 30 days
  saturn ledger prune --older-than 720h`,
	RunE: ledgerPrune,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerPruneCmd)

	ledgerListCmd.Flags().StringVar(&ledgerListFlags.identity, "identity", "", "filter by identity key (e.g. user:42)")
	ledgerListCmd.Flags().IntVar(&ledgerListFlags.limit, "limit", 20, "maximum records to show")
	ledgerListCmd.Flags().StringVar(&ledgerListFlags.format, "format", "text", "output format: text, json")

	ledgerPruneCmd.Flags().DurationVar(&ledgerPruneFlags.olderThan, "older-than", 90*24*time.Hour, "age cutoff")
}

// openLedger opens the ledger storage named by the configuration.
func openLedger() (ledger.Storage, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if cfg.Ledger.Backend != "sqlite" {
		return nil, fmt.Errorf("ledger backend %q is not queryable offline", cfg.Ledger.Backend)
	}
	return ledger.NewSQLiteStorage(cfg.Ledger.Path)
}

func ledgerList(cmd *cobra.Command, args []string) error {
	store, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	records, err := store.List(ctx, ledgerListFlags.identity, ledgerListFlags.limit)
	if err != nil {
		return fmt.Errorf("ledger query failed: %w", err)
	}

	if ledgerListFlags.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No usage records found.")
		return nil
	}

	total, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("ledger count failed: %w", err)
	}

	fmt.Printf("Showing %d of %d records (newest first)\n\n", len(records), total)
	for _, rec := range records {
		verdict := "allowed"
		if !rec.Allowed {
			verdict = fmt.Sprintf("denied (%s)", rec.LimitTypeHit)
		} else if rec.OverageCost > 0 {
			verdict = fmt.Sprintf("allowed (overage $%.4f)", rec.OverageCost)
		}
		fmt.Printf("%s  %-22s %-40s cost=%.1f  %s\n",
			rec.Timestamp.Format(time.RFC3339),
			rec.IdentityKey,
			rec.Endpoint,
			rec.CostWeight,
			verdict,
		)
	}
	return nil
}

func ledgerPrune(cmd *cobra.Command, args []string) error {
	store, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	cutoff := time.Now().Add(-ledgerPruneFlags.olderThan)
	removed, err := store.Prune(context.Background(), cutoff)
	if err != nil {
		return fmt.Errorf("ledger prune failed: %w", err)
	}

	fmt.Printf("✓ Removed %d records older than %s\n", removed, cutoff.Format(time.RFC3339))
	return nil
}
