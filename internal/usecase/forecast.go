package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/service/cache"
	"PriceCast/pkg/logger"
)

const (
	// DefaultHistoryBars is fetched when a request leaves the bar count unset.
	DefaultHistoryBars = 500
	// DefaultRunTimeout bounds one shared forecast run.
	DefaultRunTimeout = 3 * time.Minute
)

// ForecastUseCase fetches market data, runs the orchestrator and distributes the report.
type ForecastUseCase struct {
	provider  domrepo.MarketDataProvider
	orch      *ForecastOrchestrator
	cache     cache.BytesCache
	cacheTTL  time.Duration
	publisher domrepo.ReportPublisher
	benchmark string
	bars      int
	timeout   time.Duration
	metrics   domrepo.Metrics
	log       *logger.Logger
	group     singleflight.Group
}

// ForecastOption configures ForecastUseCase.
type ForecastOption func(*ForecastUseCase)

// WithReportCache caches serialized reports for ttl.
func WithReportCache(c cache.BytesCache, ttl time.Duration) ForecastOption {
	return func(uc *ForecastUseCase) {
		uc.cache = c
		uc.cacheTTL = ttl
	}
}

// WithPublisher hands every fresh report to p.
func WithPublisher(p domrepo.ReportPublisher) ForecastOption {
	return func(uc *ForecastUseCase) { uc.publisher = p }
}

// WithBenchmark sets the default benchmark symbol used for beta.
func WithBenchmark(symbol string) ForecastOption {
	return func(uc *ForecastUseCase) { uc.benchmark = strings.ToUpper(symbol) }
}

// WithHistoryBars sets how many bars to fetch when a request does not say.
func WithHistoryBars(n int) ForecastOption {
	return func(uc *ForecastUseCase) {
		if n > 0 {
			uc.bars = n
		}
	}
}

// WithRunTimeout bounds a forecast run, which outlives the callers sharing it.
func WithRunTimeout(d time.Duration) ForecastOption {
	return func(uc *ForecastUseCase) {
		if d > 0 {
			uc.timeout = d
		}
	}
}

// WithUseCaseMetrics sets the metrics sink.
func WithUseCaseMetrics(m domrepo.Metrics) ForecastOption {
	return func(uc *ForecastUseCase) {
		if m != nil {
			uc.metrics = m
		}
	}
}

// WithUseCaseLogger sets the logger.
func WithUseCaseLogger(l *logger.Logger) ForecastOption {
	return func(uc *ForecastUseCase) {
		if l != nil {
			uc.log = l
		}
	}
}

func NewForecastUseCase(provider domrepo.MarketDataProvider, orch *ForecastOrchestrator, opts ...ForecastOption) *ForecastUseCase {
	uc := &ForecastUseCase{
		provider: provider,
		orch:     orch,
		bars:     DefaultHistoryBars,
		timeout:  DefaultRunTimeout,
		metrics:  domrepo.NopMetrics{},
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// IndicatorsResult is the indicator snapshot of an instrument.
type IndicatorsResult struct {
	Symbol       string                 `json:"symbol"`
	Bars         int                    `json:"bars"`
	CurrentPrice float64                `json:"current_price"`
	AsOf         time.Time              `json:"as_of"`
	Indicators   models.IndicatorSet    `json:"indicators"`
	Trend        models.TrendAssessment `json:"trend"`
}

// RiskResult is the risk profile of an instrument.
type RiskResult struct {
	Symbol    string             `json:"symbol"`
	Benchmark string             `json:"benchmark,omitempty"`
	Bars      int                `json:"bars"`
	AsOf      time.Time          `json:"as_of"`
	Risk      models.RiskProfile `json:"risk"`
	RiskError string             `json:"risk_error,omitempty"`
}

// Forecast returns the report for req, from cache unless req.Refresh is set.
// Identical concurrent requests share one run. The run is detached from the
// caller that started it and bounded by the run timeout, so a caller that
// gives up neither fails the others nor loses the cached result.
func (uc *ForecastUseCase) Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastReport, error) {
	symbol := normalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	key := cache.ReportKey(symbol, req.Bars, req.Neural)

	if !req.Refresh {
		if r, ok := uc.cached(key); ok {
			return r, nil
		}
	}

	ch := uc.group.DoChan(key, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeout)
		defer cancel()
		report, err := uc.run(rctx, symbol, req)
		if err != nil {
			return nil, err
		}
		uc.store(key, report)
		return report, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.ForecastReport), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (uc *ForecastUseCase) run(ctx context.Context, symbol string, req models.ForecastRequest) (*models.ForecastReport, error) {
	series, err := uc.fetch(ctx, symbol, req.Bars)
	if err != nil {
		return nil, err
	}
	benchmark := uc.fetchBenchmark(ctx, symbol, req.Bars)

	var opts []RunOption
	if !req.Neural {
		opts = append(opts, SkipNeural())
	}
	report, err := uc.orch.Run(ctx, symbol, series, benchmark, opts...)
	if err != nil {
		return nil, err
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishReport(ctx, report); err != nil {
			uc.metrics.RecordError("publish")
			uc.log.Error("publish report failed",
				logger.String("id", report.ID),
				logger.String("symbol", symbol),
				logger.Error(err),
			)
		}
	}
	return report, nil
}

// Indicators computes the indicator set and trend of the latest bars.
func (uc *ForecastUseCase) Indicators(ctx context.Context, req models.IndicatorsRequest) (*IndicatorsResult, error) {
	symbol := normalizeSymbol(req.Symbol)
	series, err := uc.fetch(ctx, symbol, req.Bars)
	if err != nil {
		return nil, err
	}
	set, err := uc.orch.indicators.Compute(series)
	if err != nil {
		return nil, err
	}
	last := series.Last()
	return &IndicatorsResult{
		Symbol:       symbol,
		Bars:         series.Len(),
		CurrentPrice: last.Close,
		AsOf:         last.Time,
		Indicators:   set,
		Trend:        uc.orch.trend.Score(series, set),
	}, nil
}

// Risk computes the risk profile, against req.Benchmark or the default benchmark.
func (uc *ForecastUseCase) Risk(ctx context.Context, req models.RiskRequest) (*RiskResult, error) {
	symbol := normalizeSymbol(req.Symbol)
	series, err := uc.fetch(ctx, symbol, req.Bars)
	if err != nil {
		return nil, err
	}
	benchSymbol := normalizeSymbol(req.Benchmark)
	if benchSymbol == "" {
		benchSymbol = uc.benchmark
	}
	var benchReturns []models.DatedReturn
	if bench := uc.fetchSeries(ctx, benchSymbol, symbol, req.Bars); bench != nil {
		benchReturns = bench.Returns()
	} else {
		benchSymbol = ""
	}

	profile, err := uc.orch.risk.Assess(series.Returns(), benchReturns)
	res := &RiskResult{
		Symbol:    symbol,
		Benchmark: benchSymbol,
		Bars:      series.Len(),
		AsOf:      series.Last().Time,
		Risk:      profile,
	}
	if err != nil {
		if !errors.Is(err, models.ErrComputation) {
			return nil, err
		}
		res.RiskError = err.Error()
	}
	return res, nil
}

func (uc *ForecastUseCase) fetch(ctx context.Context, symbol string, bars int) (*models.PriceSeries, error) {
	if bars <= 0 {
		bars = uc.bars
	}
	start := time.Now()
	series, err := uc.provider.DailyBars(ctx, symbol, bars)
	uc.metrics.RecordLatency("provider_fetch", time.Since(start).Seconds())
	if err != nil {
		uc.metrics.RecordError("provider")
		if !errors.Is(err, models.ErrDataUnavailable) {
			err = fmt.Errorf("%w: %s: %w", models.ErrDataUnavailable, uc.provider.Name(), err)
		}
		return nil, err
	}
	return series, nil
}

func (uc *ForecastUseCase) fetchBenchmark(ctx context.Context, symbol string, bars int) *models.PriceSeries {
	return uc.fetchSeries(ctx, uc.benchmark, symbol, bars)
}

// fetchSeries loads an optional comparison series; failures only cost the beta estimate.
func (uc *ForecastUseCase) fetchSeries(ctx context.Context, benchSymbol, symbol string, bars int) *models.PriceSeries {
	if benchSymbol == "" || benchSymbol == symbol {
		return nil
	}
	series, err := uc.fetch(ctx, benchSymbol, bars)
	if err != nil {
		uc.log.Warn("benchmark unavailable, beta defaults",
			logger.String("benchmark", benchSymbol),
			logger.Error(err),
		)
		return nil
	}
	return series
}

func (uc *ForecastUseCase) cached(key string) (*models.ForecastReport, bool) {
	if uc.cache == nil {
		return nil, false
	}
	b, ok, err := uc.cache.GetBytes(key)
	if err != nil {
		uc.log.Warn("report cache read failed", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var r models.ForecastReport
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, false
	}
	return &r, true
}

func (uc *ForecastUseCase) store(key string, r *models.ForecastReport) {
	if uc.cache == nil || uc.cacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := uc.cache.SetBytes(key, b, uc.cacheTTL); err != nil {
		uc.log.Warn("report cache write failed", logger.String("key", key), logger.Error(err))
	}
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
