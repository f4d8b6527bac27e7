package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts      *prometheus.CounterVec
	neuralFallback *prometheus.CounterVec
	modelCache     *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_forecasts_total",
				Help: "Total number of forecast reports by primary method",
			},
			[]string{"method"},
		),
		neuralFallback: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_neural_fallbacks_total",
				Help: "Neural attempts that fell back to the heuristic forecast",
			},
			[]string{"reason"},
		),
		modelCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_model_cache_events_total",
				Help: "Model cache hits, misses and retrains",
			},
			[]string{"event"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricecast_last_price",
				Help: "Last observed close for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"operation"},
		),
	}
}

// RecordForecast counts a finished report by the method that produced its primary prediction.
func (r *Recorder) RecordForecast(method string) {
	r.forecasts.WithLabelValues(method).Inc()
}

// RecordNeuralFallback counts a neural attempt that did not make it into the report.
func (r *Recorder) RecordNeuralFallback(reason string) {
	r.neuralFallback.WithLabelValues(reason).Inc()
}

// RecordModelCache records hit, miss, stale or retrain events.
func (r *Recorder) RecordModelCache(event string) {
	r.modelCache.WithLabelValues(event).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
