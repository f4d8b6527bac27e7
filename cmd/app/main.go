package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"PriceCast/pkg/config"
)

var configPath string

// rootCmd is the base command for the PriceCast CLI
var rootCmd = &cobra.Command{
	Use:   "pricecast",
	Short: "PriceCast multi-horizon price forecasting engine",
	Long: `PriceCast produces forecast reports for an instrument: technical indicators,
trend, risk profile, heuristic projections over 1 to 180 days, an optional
neural projection and per-horizon recommendations.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (defaults plus PRICECAST_* env when empty)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
