package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clubline-hq/saturn/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the gateway.

Reports the parsed rule tables so operators can confirm what a config
change will do before deploying it.

Examples:
  # Validate the default config file
  saturn validate

  # Validate a specific file
  saturn validate --config /etc/saturn/saturn.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
	fmt.Println()
	fmt.Printf("Listen address:  %s\n", cfg.Server.ListenAddress)
	if cfg.Server.UpstreamURL != "" {
		fmt.Printf("Upstream:        %s\n", cfg.Server.UpstreamURL)
	} else {
		fmt.Println("Upstream:        (decision-only mode)")
	}
	fmt.Printf("Failure policy:  %s\n", cfg.Admission.FailurePolicy)
	fmt.Printf("Default tier:    %s\n", cfg.Admission.DefaultTier)
	fmt.Printf("Count denied:    %t\n", cfg.Admission.CountDeniedOrDefault())

	fmt.Println()
	if len(cfg.Admission.CostRules) == 0 {
		fmt.Println("Cost rules:      (none, all endpoints weigh 1.0)")
	} else {
		fmt.Printf("Cost rules (%d, first match wins):\n", len(cfg.Admission.CostRules))
		for _, rule := range cfg.Admission.CostRules {
			fmt.Printf("  %-40s %.2f\n", rule.Pattern, rule.Weight)
		}
	}

	fmt.Println()
	if len(cfg.Admission.Tiers) == 0 {
		fmt.Println("Tiers:           (built-in catalog)")
	} else {
		fmt.Printf("Tiers (%d):\n", len(cfg.Admission.Tiers))
		for _, tier := range cfg.Admission.Tiers {
			if tier.Unlimited {
				fmt.Printf("  %-12s unlimited (concurrent: %d)\n", tier.Name, tier.ConcurrentRequests)
				continue
			}
			fmt.Printf("  %-12s hourly: %.0f  burst: %.0f  concurrent: %d\n",
				tier.Name, tier.RequestsPerHour, tier.BurstPerMinute, tier.ConcurrentRequests)
		}
	}

	return nil
}
