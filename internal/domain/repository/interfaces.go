package repository

import (
	"context"

	"PriceCast/internal/domain/models"
)

// MarketDataProvider supplies daily bars for an instrument.
// Failures must wrap models.ErrDataUnavailable.
type MarketDataProvider interface {
	Name() string
	DailyBars(ctx context.Context, symbol string, n int) (*models.PriceSeries, error)
}

// ReportPublisher hands finished reports to the reporting layer.
type ReportPublisher interface {
	PublishReport(ctx context.Context, r *models.ForecastReport) error
	Close() error
}

// Metrics records forecasting telemetry.
type Metrics interface {
	RecordForecast(method string)
	RecordNeuralFallback(reason string)
	RecordModelCache(event string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards all telemetry.
type NopMetrics struct{}

func (NopMetrics) RecordForecast(string)           {}
func (NopMetrics) RecordNeuralFallback(string)     {}
func (NopMetrics) RecordModelCache(string)         {}
func (NopMetrics) RecordError(string)              {}
func (NopMetrics) RecordLastPrice(string, float64) {}
func (NopMetrics) RecordLatency(string, float64)   {}

var _ Metrics = NopMetrics{}
