package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/repository"
)

var _ repository.Metrics = (*Recorder)(nil)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordForecast("heuristic")
	r.RecordForecast("heuristic")
	r.RecordForecast("neural")
	r.RecordNeuralFallback("insufficient_data")
	r.RecordModelCache("hit")
	r.RecordError("data_unavailable")
	r.RecordLastPrice("AAPL", 187.5)
	r.RecordLatency("forecast", 0.42)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.forecasts.WithLabelValues("heuristic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecasts.WithLabelValues("neural")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.neuralFallback.WithLabelValues("insufficient_data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.modelCache.WithLabelValues("hit")))
	assert.Equal(t, 187.5, testutil.ToFloat64(r.lastPrice.WithLabelValues("AAPL")))

	n, err := testutil.GatherAndCount(reg, "pricecast_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
