package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/confidence"
	"PriceCast/internal/services/heuristic"
	"PriceCast/internal/services/indicators"
	"PriceCast/internal/services/risk"
	"PriceCast/internal/services/trend"
	"PriceCast/pkg/logger"
)

const (
	// DefaultNeuralThreshold is the neural confidence a forecast must exceed to become primary.
	DefaultNeuralThreshold = 20.0
	// DefaultNeuralTimeout bounds the neural attempt of a single run.
	DefaultNeuralTimeout = 2 * time.Minute
)

// DefaultMinConfidence gates recommendations per bucket.
var DefaultMinConfidence = models.ConfidenceScores{ShortTerm: 70, MediumTerm: 60, LongTerm: 50}

// ForecastOrchestrator assembles a ForecastReport from the individual forecasting services.
// The heuristic path is the guaranteed baseline; the neural attempt only ever adds to it.
type ForecastOrchestrator struct {
	indicators *indicators.Engine
	trend      *trend.Scorer
	risk       *risk.Calculator
	heuristic  *heuristic.Forecaster
	confidence *confidence.Estimator
	neural     service.NeuralForecaster

	neuralTimeout   time.Duration
	neuralThreshold float64
	minConfidence   models.ConfidenceScores

	metrics repository.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// OrchestratorOption configures ForecastOrchestrator.
type OrchestratorOption func(*ForecastOrchestrator)

// WithNeural enables the neural attempt.
func WithNeural(n service.NeuralForecaster) OrchestratorOption {
	return func(o *ForecastOrchestrator) { o.neural = n }
}

// WithNeuralTimeout bounds how long a run waits for the neural forecast.
func WithNeuralTimeout(d time.Duration) OrchestratorOption {
	return func(o *ForecastOrchestrator) {
		if d > 0 {
			o.neuralTimeout = d
		}
	}
}

// WithNeuralThreshold sets the confidence a neural forecast must exceed.
func WithNeuralThreshold(v float64) OrchestratorOption {
	return func(o *ForecastOrchestrator) { o.neuralThreshold = v }
}

// WithMinConfidence sets the per-bucket confidence below which recommendations are Hold.
func WithMinConfidence(c models.ConfidenceScores) OrchestratorOption {
	return func(o *ForecastOrchestrator) { o.minConfidence = c }
}

// WithOrchestratorMetrics sets the metrics sink.
func WithOrchestratorMetrics(m repository.Metrics) OrchestratorOption {
	return func(o *ForecastOrchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(l *logger.Logger) OrchestratorOption {
	return func(o *ForecastOrchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithOrchestratorClock replaces time.Now for GeneratedAt.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *ForecastOrchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewForecastOrchestrator wires the forecasting services. Nil services get defaults.
func NewForecastOrchestrator(
	ind *indicators.Engine,
	tr *trend.Scorer,
	rc *risk.Calculator,
	hf *heuristic.Forecaster,
	ce *confidence.Estimator,
	opts ...OrchestratorOption,
) *ForecastOrchestrator {
	o := &ForecastOrchestrator{
		indicators:      ind,
		trend:           tr,
		risk:            rc,
		heuristic:       hf,
		confidence:      ce,
		neuralTimeout:   DefaultNeuralTimeout,
		neuralThreshold: DefaultNeuralThreshold,
		minConfidence:   DefaultMinConfidence,
		metrics:         repository.NopMetrics{},
		log:             logger.Nop(),
		now:             time.Now,
	}
	if o.indicators == nil {
		o.indicators = indicators.NewEngine()
	}
	if o.trend == nil {
		o.trend = trend.NewScorer()
	}
	if o.risk == nil {
		o.risk = risk.NewCalculator()
	}
	if o.heuristic == nil {
		o.heuristic = heuristic.NewForecaster()
	}
	if o.confidence == nil {
		o.confidence = confidence.NewEstimator()
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type runConfig struct {
	skipNeural bool
}

// RunOption tunes a single Run.
type RunOption func(*runConfig)

// SkipNeural produces a heuristic-only report.
func SkipNeural() RunOption {
	return func(c *runConfig) { c.skipNeural = true }
}

// Run builds the report for instrument. benchmark may be nil.
// It fails with models.ErrInsufficientData below indicators.MinBars bars and never
// fails because of the neural forecaster.
func (o *ForecastOrchestrator) Run(ctx context.Context, instrument string, series, benchmark *models.PriceSeries, opts ...RunOption) (*models.ForecastReport, error) {
	start := time.Now()
	defer func() { o.metrics.RecordLatency("forecast_run", time.Since(start).Seconds()) }()

	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}
	if series == nil || series.Len() < indicators.MinBars {
		n := 0
		if series != nil {
			n = series.Len()
		}
		o.metrics.RecordError("insufficient_data")
		return nil, models.NewInsufficientData("forecast", indicators.MinBars, n)
	}
	if instrument == "" {
		instrument = series.Symbol()
	}
	var benchReturns []models.DatedReturn
	if benchmark != nil {
		benchReturns = benchmark.Returns()
	}

	var (
		set       models.IndicatorSet
		assessed  models.TrendAssessment
		forecasts models.BucketForecasts
		scores    models.ConfidenceScores
		profile   models.RiskProfile
		riskErr   error
		summary   *models.NeuralSummary
		neuralErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if set, err = o.indicators.Compute(series); err != nil {
			return fmt.Errorf("indicators: %w", err)
		}
		assessed = o.trend.Score(series, set)
		if forecasts, err = o.heuristic.Forecast(series, set, assessed); err != nil {
			return fmt.Errorf("heuristic forecast: %w", err)
		}
		scores = o.confidence.Estimate(series, set)
		return nil
	})
	g.Go(func() error {
		profile, riskErr = o.risk.Assess(series.Returns(), benchReturns)
		return nil
	})
	useNeural := o.neural != nil && !rc.skipNeural
	if useNeural {
		g.Go(func() error {
			nctx, cancel := context.WithTimeout(gctx, o.neuralTimeout)
			defer cancel()
			summary, neuralErr = o.neural.Predict(nctx, series)
			if neuralErr != nil && !errors.Is(neuralErr, models.ErrModelUnavailable) {
				neuralErr = fmt.Errorf("%w: %w", models.ErrModelUnavailable, neuralErr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.metrics.RecordError("forecast")
		return nil, err
	}

	current := series.Last().Close
	report := &models.ForecastReport{
		ID:               uuid.NewString(),
		Instrument:       instrument,
		CurrentPrice:     current,
		Indicators:       set,
		Trend:            assessed,
		Risk:             profile,
		ConfidenceScores: scores,
		MethodUsed:       models.MethodHeuristic,
		GeneratedAt:      o.now().UTC(),
	}
	if riskErr != nil {
		report.RiskError = riskErr.Error()
		o.log.Warn("risk profile incomplete",
			logger.String("symbol", instrument),
			logger.Error(riskErr),
		)
	}

	valid, omitted := validateBuckets(forecasts)
	if len(valid) == 0 {
		o.metrics.RecordError("computation")
		return nil, models.Computationf("%s: no valid forecast bucket", instrument)
	}
	report.ForecastsByBucket = valid
	if len(omitted) > 0 {
		report.OmittedBuckets = omitted
	}

	primary, ok := heuristicPrimary(valid)
	if !ok {
		return nil, models.Computationf("%s: no primary forecast", instrument)
	}
	report.Primary = primary

	if useNeural {
		o.overlayNeural(report, summary, neuralErr)
	}
	report.Recommendations = o.recommend(report)

	o.metrics.RecordForecast(string(report.MethodUsed))
	o.metrics.RecordLastPrice(instrument, current)
	o.log.Info("forecast report ready",
		logger.String("id", report.ID),
		logger.String("symbol", instrument),
		logger.String("method", string(report.MethodUsed)),
		logger.String("trend", string(assessed.Direction)),
		logger.String("risk", string(profile.RiskLevel)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// overlayNeural attaches a usable neural forecast and promotes its medium-term
// projection to primary. Any shortfall is recorded and the heuristic primary stays.
func (o *ForecastOrchestrator) overlayNeural(report *models.ForecastReport, summary *models.NeuralSummary, err error) {
	fallback := func(reason string, cause error) {
		report.NeuralError = cause.Error()
		o.metrics.RecordNeuralFallback(reason)
		o.log.Warn("neural forecast not used, keeping heuristic baseline",
			logger.String("symbol", report.Instrument),
			logger.String("reason", reason),
			logger.Error(cause),
		)
	}
	switch {
	case err != nil:
		fallback(fallbackReason(err), err)
		return
	case summary == nil:
		fallback("empty", models.ModelUnavailablef("no neural forecast returned"))
		return
	case summary.Confidence <= o.neuralThreshold:
		fallback("low_confidence", models.ModelUnavailablef("neural confidence %.1f does not exceed %.1f", summary.Confidence, o.neuralThreshold))
		return
	}

	valid, omitted := validateBuckets(summary.Forecasts)
	fc, ok := valid.Lookup(models.MediumTerm, models.RepresentativeHorizon[models.MediumTerm])
	if !ok {
		fallback("invalid_forecast", models.Computationf("neural medium-term forecast missing or invalid"))
		return
	}

	attached := *summary
	attached.Forecasts = valid
	attached.DailyPredictions = positivePrefix(summary.DailyPredictions)
	if len(omitted) > 0 {
		attached.Omitted = omitted
		o.log.Warn("neural buckets omitted",
			logger.String("symbol", report.Instrument),
			logger.Int("omitted", len(omitted)),
		)
	}
	report.Neural = &attached
	report.MethodUsed = models.MethodNeural
	report.Primary = models.PrimaryPrediction{
		Method:         models.MethodNeural,
		HorizonDays:    fc.HorizonDays,
		PredictedPrice: fc.PredictedPrice,
		ChangePct:      fc.ChangePct,
	}
}

// positivePrefix keeps the daily path up to its first non-positive price.
func positivePrefix(prices []float64) []float64 {
	for i, p := range prices {
		if !(p > 0) || math.IsInf(p, 0) {
			return prices[:i:i]
		}
	}
	return prices
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, models.ErrInsufficientData):
		return "insufficient_data"
	default:
		return "unavailable"
	}
}

// validateBuckets drops every bucket holding a non-finite or non-positive projection.
func validateBuckets(in models.BucketForecasts) (models.BucketForecasts, map[models.Bucket]string) {
	valid := make(models.BucketForecasts, len(in))
	omitted := make(map[models.Bucket]string)
	for _, b := range models.Buckets {
		fcs, ok := in[b]
		if !ok || len(fcs) == 0 {
			omitted[b] = "no forecasts produced"
			continue
		}
		reason := ""
		for _, h := range in.Horizons(b) {
			if !fcs[h].Valid() {
				reason = fmt.Sprintf("invalid projection at %d days: price %v", h, fcs[h].PredictedPrice)
				break
			}
		}
		if reason != "" {
			omitted[b] = reason
			continue
		}
		valid[b] = fcs
	}
	return valid, omitted
}

// heuristicPrimary prefers the medium-term representative horizon, then the nearest remaining bucket.
func heuristicPrimary(fcs models.BucketForecasts) (models.PrimaryPrediction, bool) {
	for _, b := range []models.Bucket{models.MediumTerm, models.ShortTerm, models.LongTerm} {
		fc, ok := fcs.Lookup(b, models.RepresentativeHorizon[b])
		if !ok {
			continue
		}
		return models.PrimaryPrediction{
			Method:         models.MethodHeuristic,
			HorizonDays:    fc.HorizonDays,
			PredictedPrice: fc.PredictedPrice,
			ChangePct:      fc.ChangePct,
		}, true
	}
	return models.PrimaryPrediction{}, false
}
