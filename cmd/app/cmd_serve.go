package main

import (
	"github.com/spf13/cobra"

	"PriceCast/internal/di"
)

// serveCmd runs the HTTP API and, when Kafka is enabled, the request consumer.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the forecast API",
	Long: `Serve GET /api/forecast, /api/indicators, /api/risk, /healthz and /metrics.
With kafka.enabled, forecast requests are also consumed from kafka.request_topic
and reports published to kafka.report_topic.

Examples:
  pricecast serve --config configs/config.yaml
  PRICECAST_PROVIDER=csv pricecast serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// blocks until SIGINT/SIGTERM
	return app.Run()
}
