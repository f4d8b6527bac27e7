//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PriceCast/internal/usecase"
	"PriceCast/pkg/config"
	"PriceCast/pkg/server"
)

var forecastSet = wire.NewSet(
	// Ambient
	ProvideLogger,
	ProvideMetrics,

	// Market data
	ProvideClickHouseClient,
	ProvideMarketData,

	// Forecasting services
	ProvideSequenceRuntime,
	ProvideModelCache,
	ProvidePredictor,
	ProvideOrchestrator,

	// Distribution
	ProvideReportCache,
	ProvideKafkaProducer,
	ProvideReportPublisher,

	// Use cases
	ProvideForecastUseCase,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		forecastSet,

		// Transport
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideKafkaConsumer,
		ProvideKafkaRequestHandler,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeForecastUseCase wires the one-shot forecast path used by the CLI.
func InitializeForecastUseCase(cfg *config.Config) (*usecase.ForecastUseCase, func(), error) {
	wire.Build(forecastSet)
	return nil, nil, nil
}
