package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"PriceCast/pkg/config"
)

func TestApplyForecastFlags(t *testing.T) {
	forecastSymbol, forecastCSV, forecastSeed = "aapl", "/tmp/aapl.csv", 7
	t.Cleanup(func() { forecastSymbol, forecastCSV, forecastSeed = "", "", 0 })

	cfg := config.Default()
	applyForecastFlags(cfg)

	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Equal(t, config.ProviderCSV, cfg.MarketData.Provider)
	assert.Equal(t, "/tmp/aapl.csv", cfg.MarketData.CSVFiles["AAPL"])
	assert.Equal(t, int64(7), cfg.Forecast.Seed)
}

func TestApplyForecastFlagsKeepsProvider(t *testing.T) {
	forecastSymbol = "MSFT"
	t.Cleanup(func() { forecastSymbol = "" })

	cfg := config.Default()
	applyForecastFlags(cfg)
	assert.Equal(t, config.ProviderClickHouse, cfg.MarketData.Provider)
	assert.Zero(t, cfg.Forecast.Seed)
}
