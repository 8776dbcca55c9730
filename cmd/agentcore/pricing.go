package main

import (
	"fmt"

	"github.com/corebrain/agentcore/internal/catalog"
	"github.com/corebrain/agentcore/internal/config"
	"github.com/corebrain/agentcore/internal/pricing"
	"github.com/spf13/cobra"
)

// buildPricingCmd creates the "pricing" command group: resolving a model's
// per-token cost from the persistent cache, overriding it, and listing
// what a provider's model catalog reports.
func buildPricingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Inspect and override per-model pricing",
	}
	cmd.AddCommand(
		buildPricingLookupCmd(),
		buildPricingSetCmd(),
		buildPricingCatalogCmd(),
	)
	return cmd
}

func buildPricingLookupCmd() *cobra.Command {
	var cacheFile string
	cmd := &cobra.Command{
		Use:   "lookup <model>",
		Short: "Resolve a model's per-million-token pricing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := pricing.Load(cacheFile)
			if err != nil {
				return fmt.Errorf("pricing lookup: %w", err)
			}
			defer cache.Close()

			input, output, ok := cache.Resolve(args[0])
			if !ok {
				return fmt.Errorf("pricing lookup: no pricing known for %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: $%.4f/M input, $%.4f/M output\n", args[0], input, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cacheFile, "cache-file", "f", "pricing_cache.json", "Path to the pricing cache file")
	return cmd
}

func buildPricingSetCmd() *cobra.Command {
	var cacheFile string
	cmd := &cobra.Command{
		Use:   "set <model> <input-per-million> <output-per-million>",
		Short: "Record a user-specified pricing override",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := pricing.Load(cacheFile)
			if err != nil {
				return fmt.Errorf("pricing set: %w", err)
			}
			defer cache.Close()

			var input, output float64
			if _, err := fmt.Sscanf(args[1], "%f", &input); err != nil {
				return fmt.Errorf("pricing set: invalid input price %q", args[1])
			}
			if _, err := fmt.Sscanf(args[2], "%f", &output); err != nil {
				return fmt.Errorf("pricing set: invalid output price %q", args[2])
			}
			cache.SetPricing(args[0], input, output)
			fmt.Fprintf(cmd.OutOrStdout(), "pricing override recorded for %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&cacheFile, "cache-file", "f", "pricing_cache.json", "Path to the pricing cache file")
	return cmd
}

func buildPricingCatalogCmd() *cobra.Command {
	var configPath string
	var providerName string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List models a provider reports, with known pricing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("pricing catalog: %w", err)
			}
			if providerName == "" {
				providerName = cfg.Providers.Default
			}
			p, ok := cfg.Providers.Providers[providerName]
			if !ok {
				return fmt.Errorf("pricing catalog: no such provider %q", providerName)
			}
			apiKey, err := cfg.APIKey(providerName)
			if err != nil {
				return fmt.Errorf("pricing catalog: %w", err)
			}

			models, err := catalog.ListModels(cmd.Context(), p.Dialect, apiKey, p.BaseURL)
			if err != nil {
				return fmt.Errorf("pricing catalog: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, m := range models {
				priced := "unknown"
				if m.InputCost != nil && m.OutputCost != nil {
					priced = fmt.Sprintf("$%.4f/$%.4f per M", *m.InputCost, *m.OutputCost)
				}
				fmt.Fprintf(out, "%-30s %s\n", m.ID, priced)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&providerName, "provider", "", "Provider name (defaults to providers.default)")
	return cmd
}
