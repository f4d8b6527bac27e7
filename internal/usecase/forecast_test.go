package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/service/cache"
)

func newTestUseCase(p *fakeProvider, opts ...ForecastOption) *ForecastUseCase {
	return NewForecastUseCase(p, newTestOrchestrator(), opts...)
}

func TestForecastPublishesReport(t *testing.T) {
	p := newFakeProvider(uptrend("AAPL"), uptrend("SPY"))
	pub := &fakePublisher{}
	uc := newTestUseCase(p, WithPublisher(pub), WithBenchmark("spy"))

	report, err := uc.Forecast(context.Background(), models.ForecastRequest{Symbol: " aapl ", Bars: 300})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", report.Instrument)
	assert.InDelta(t, 1.0, report.Risk.Beta, 1e-9)
	assert.Equal(t, 1, pub.Published())
	assert.Equal(t, 1, p.Calls("SPY"))
}

func TestForecastRequiresSymbol(t *testing.T) {
	uc := newTestUseCase(newFakeProvider())
	_, err := uc.Forecast(context.Background(), models.ForecastRequest{Symbol: "  "})
	assert.Error(t, err)
}

func TestForecastUsesCache(t *testing.T) {
	p := newFakeProvider(uptrend("AAPL"))
	uc := newTestUseCase(p, WithReportCache(cache.NewTTLCache(), time.Minute))
	req := models.ForecastRequest{Symbol: "AAPL", Bars: 300}

	first, err := uc.Forecast(context.Background(), req)
	require.NoError(t, err)
	second, err := uc.Forecast(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Calls("AAPL"))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ForecastsByBucket, second.ForecastsByBucket)

	req.Refresh = true
	third, err := uc.Forecast(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Calls("AAPL"))
	assert.NotEqual(t, first.ID, third.ID)
}

func TestForecastProviderFailure(t *testing.T) {
	p := newFakeProvider()
	p.err = errBoom
	uc := newTestUseCase(p)

	_, err := uc.Forecast(context.Background(), models.ForecastRequest{Symbol: "AAPL"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))
	assert.True(t, errors.Is(err, errBoom))
}

func TestForecastToleratesMissingBenchmark(t *testing.T) {
	p := newFakeProvider(uptrend("AAPL"))
	uc := newTestUseCase(p, WithBenchmark("SPY"))

	report, err := uc.Forecast(context.Background(), models.ForecastRequest{Symbol: "AAPL", Bars: 300})
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.Risk.Beta)
}

func TestForecastPublishFailureDoesNotFail(t *testing.T) {
	p := newFakeProvider(uptrend("AAPL"))
	uc := newTestUseCase(p, WithPublisher(&fakePublisher{err: errBoom}))

	_, err := uc.Forecast(context.Background(), models.ForecastRequest{Symbol: "AAPL"})
	assert.NoError(t, err)
}

func TestForecastInsufficientHistory(t *testing.T) {
	p := newFakeProvider(flat("NEW", 10, 5))
	uc := newTestUseCase(p)

	_, err := uc.Forecast(context.Background(), models.ForecastRequest{Symbol: "NEW"})
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestIndicators(t *testing.T) {
	p := newFakeProvider(uptrend("AAPL"))
	uc := newTestUseCase(p)

	res, err := uc.Indicators(context.Background(), models.IndicatorsRequest{Symbol: "aapl", Bars: 250})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, 250, res.Bars)
	assert.Equal(t, day0.AddDate(0, 0, 299), res.AsOf)
	assert.True(t, res.Indicators.Has(models.IndSMA200, models.IndRSI, models.IndVolatility))
	assert.Equal(t, models.Bullish, res.Trend.Direction)
}

func TestRiskWithBenchmarkOverride(t *testing.T) {
	p := newFakeProvider(uptrend("AAPL"), uptrend("QQQ"))
	uc := newTestUseCase(p, WithBenchmark("SPY"))

	res, err := uc.Risk(context.Background(), models.RiskRequest{Symbol: "AAPL", Bars: 252, Benchmark: "qqq"})
	require.NoError(t, err)
	assert.Equal(t, "QQQ", res.Benchmark)
	assert.InDelta(t, 1.0, res.Risk.Beta, 1e-9)
	assert.Equal(t, models.RiskLow, res.Risk.RiskLevel)
	assert.Empty(t, res.RiskError)
	assert.Equal(t, 0, p.Calls("SPY"))
}

func TestRiskFlatSeriesReportsError(t *testing.T) {
	p := newFakeProvider(flat("FLAT", 60, 10))
	uc := newTestUseCase(p)

	res, err := uc.Risk(context.Background(), models.RiskRequest{Symbol: "FLAT", Bars: 60})
	require.NoError(t, err)
	assert.Empty(t, res.Benchmark)
	assert.NotEmpty(t, res.RiskError)
	assert.Equal(t, models.RiskLow, res.Risk.RiskLevel)
}

func TestRiskTooFewReturns(t *testing.T) {
	p := newFakeProvider(flat("NEW", 5, 10))
	uc := newTestUseCase(p)

	_, err := uc.Risk(context.Background(), models.RiskRequest{Symbol: "NEW", Bars: 60})
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestForecastSharedRunOutlivesCanceledCaller(t *testing.T) {
	p := newFakeProvider(uptrend("AAPL"))
	p.gate = make(chan struct{})
	uc := newTestUseCase(p, WithReportCache(cache.NewTTLCache(), time.Minute))
	req := models.ForecastRequest{Symbol: "AAPL", Bars: 300, Refresh: true}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := uc.Forecast(firstCtx, req)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return p.Calls("AAPL") == 1 }, time.Second, time.Millisecond)

	type result struct {
		report *models.ForecastReport
		err    error
	}
	second := make(chan result, 1)
	go func() {
		r, err := uc.Forecast(context.Background(), req)
		second <- result{r, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(p.gate)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "AAPL", res.report.Instrument)
	assert.Equal(t, 1, p.Calls("AAPL"))

	// the shared run filled the cache
	cached, err := uc.Forecast(context.Background(), models.ForecastRequest{Symbol: "AAPL", Bars: 300})
	require.NoError(t, err)
	assert.Equal(t, res.report.ID, cached.ID)
	assert.Equal(t, 1, p.Calls("AAPL"))
}

func TestForecastRunTimeout(t *testing.T) {
	p := newFakeProvider(uptrend("AAPL"))
	p.gate = make(chan struct{})
	defer close(p.gate)
	uc := newTestUseCase(p, WithRunTimeout(20*time.Millisecond))

	_, err := uc.Forecast(context.Background(), models.ForecastRequest{Symbol: "AAPL", Bars: 300})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}
