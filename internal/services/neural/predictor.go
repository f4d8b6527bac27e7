package neural

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	"PriceCast/pkg/logger"
)

// intervalTable is the fixed uncertainty per horizon, as a fraction of price.
var intervalTable = map[int]float64{
	1:  0.05,
	3:  0.08,
	7:  0.12,
	14: 0.18,
	30: 0.25,
	60: 0.35,
	90: 0.45,
}

var intervalHorizons = []int{1, 3, 7, 14, 30, 60, 90}

// IntervalFor returns the uncertainty fraction of the nearest tabulated horizon.
func IntervalFor(days int) float64 {
	h, _ := models.NearestHorizon(intervalHorizons, days)
	return intervalTable[h]
}

// Confidence scores the fit in percent: relative test error sets the base,
// a test error well above the training error is penalized as overfitting and
// more data earns a small bonus. The result is bounded to [20, 95].
func Confidence(trainRMSE, testRMSE, meanPrice float64, points int) float64 {
	if meanPrice <= 0 || math.IsNaN(testRMSE) || math.IsNaN(trainRMSE) {
		return 20
	}
	score := 100 * (1 - 5*testRMSE/meanPrice)
	if trainRMSE > 0 && testRMSE > 1.5*trainRMSE {
		score -= math.Min(20, (testRMSE/trainRMSE-1)*10)
	}
	score += math.Min(10, float64(points)/100)
	return math.Max(20, math.Min(95, score))
}

// DetermineTrend classifies the 7 and 30 day projected changes. Agreeing
// signals decide directly; mixed signals follow the 30 day change.
func DetermineTrend(current float64, predictions []float64) models.Direction {
	if len(predictions) == 0 || current <= 0 {
		return models.Neutral
	}
	at := func(day int) float64 {
		i := min(day, len(predictions)) - 1
		return (predictions[i]/current - 1) * 100
	}
	c7, c30 := at(7), at(30)
	switch {
	case c7 > 2 && c30 > 3:
		return models.Bullish
	case c7 < -2 && c30 < -3:
		return models.Bearish
	case math.Abs(c7) <= 2 && math.Abs(c30) <= 3:
		return models.Neutral
	case c30 > 0:
		return models.Bullish
	case c30 < 0:
		return models.Bearish
	default:
		return models.Neutral
	}
}

// Predictor produces sequence-model forecasts through a runtime and a model cache.
type Predictor struct {
	runtime   service.SequenceModelRuntime
	cache     *ModelCache
	spec      service.ModelSpec
	minPoints int
	metrics   repository.Metrics
	log       *logger.Logger
}

var _ service.NeuralForecaster = (*Predictor)(nil)

// PredictorOption configures Predictor.
type PredictorOption func(*Predictor)

// WithSpec sets the network and training parameters.
func WithSpec(spec service.ModelSpec) PredictorOption {
	return func(p *Predictor) { p.spec = withDefaults(spec) }
}

// WithMinPoints sets the fewest valid closes needed to train.
func WithMinPoints(n int) PredictorOption {
	return func(p *Predictor) {
		if n > 0 {
			p.minPoints = n
		}
	}
}

// WithPredictorMetrics sets the metrics sink.
func WithPredictorMetrics(m repository.Metrics) PredictorOption {
	return func(p *Predictor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithPredictorLogger sets the logger.
func WithPredictorLogger(l *logger.Logger) PredictorOption {
	return func(p *Predictor) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPredictor wires a runtime and a cache. A nil runtime behaves as disabled.
func NewPredictor(runtime service.SequenceModelRuntime, cache *ModelCache, opts ...PredictorOption) *Predictor {
	if runtime == nil {
		runtime = DisabledRuntime{}
	}
	if cache == nil {
		cache = NewModelCache()
	}
	p := &Predictor{
		runtime:   runtime,
		cache:     cache,
		spec:      DefaultSpec(),
		minPoints: DefaultMinPoints,
		metrics:   repository.NopMetrics{},
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Runtime names the configured runtime.
func (p *Predictor) Runtime() string { return p.runtime.Name() }

// Cache exposes the model cache.
func (p *Predictor) Cache() *ModelCache { return p.cache }

// Prepare builds the supervised dataset for series.
func (p *Predictor) Prepare(series *models.PriceSeries) (*Dataset, error) {
	return Prepare(series, p.spec.LookBack, p.minPoints)
}

// Train returns the cached model for key, training one when the key is
// untrained or stale.
func (p *Predictor) Train(ctx context.Context, key Key, trainX [][]float64, trainY []float64) (*Entry, error) {
	if !p.runtime.Available() {
		return nil, models.ModelUnavailablef("runtime %s unavailable", p.runtime.Name())
	}
	entry, err := p.cache.GetOrTrain(ctx, key, func(ctx context.Context) (*service.TrainResult, error) {
		return p.runtime.Train(ctx, trainX, trainY, p.spec)
	})
	if err != nil {
		return nil, unavailable("train", err)
	}
	return entry, nil
}

// PredictFuture rolls the model forward days steps from the end of normalized,
// feeding every prediction back into the window, and returns prices.
func (p *Predictor) PredictFuture(ctx context.Context, model service.SequenceModel, normalized []float64, days int, scaler Scaler) ([]float64, error) {
	lookBack := p.spec.LookBack
	if len(normalized) < lookBack {
		return nil, models.NewInsufficientData("predict future", lookBack, len(normalized))
	}
	window := append([]float64(nil), normalized[len(normalized)-lookBack:]...)
	out := make([]float64, 0, days)
	for d := 0; d < days; d++ {
		next, err := model.Predict(ctx, window)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", d+1, err)
		}
		out = append(out, scaler.Inverse(next))
		window = append(window[1:], next)
	}
	return out, nil
}

// Predict runs the full pipeline for series. Every failure is reported as
// models.ErrModelUnavailable.
func (p *Predictor) Predict(ctx context.Context, series *models.PriceSeries) (*models.NeuralSummary, error) {
	start := time.Now()
	defer func() { p.metrics.RecordLatency("neural_predict", time.Since(start).Seconds()) }()

	if !p.runtime.Available() {
		return nil, models.ModelUnavailablef("runtime %s unavailable", p.runtime.Name())
	}
	ds, err := p.Prepare(series)
	if err != nil {
		return nil, unavailable("prepare", err)
	}

	entry, err := p.Train(ctx, ShapeKey(series.Symbol(), ds.LookBack), ds.TrainX, ds.TrainY)
	if err != nil {
		return nil, err
	}

	trainRMSE, err := rmse(ctx, entry.Model, ds.TrainX, ds.TrainY, ds.Scaler)
	if err != nil {
		return nil, unavailable("evaluate train", err)
	}
	testRMSE := trainRMSE
	if len(ds.TestX) > 0 {
		if testRMSE, err = rmse(ctx, entry.Model, ds.TestX, ds.TestY, ds.Scaler); err != nil {
			return nil, unavailable("evaluate test", err)
		}
	}

	maxDays := 0
	for _, hs := range models.NeuralHorizons {
		for _, h := range hs {
			maxDays = max(maxDays, h)
		}
	}
	daily, err := p.PredictFuture(ctx, entry.Model, ds.Normalized, maxDays, ds.Scaler)
	if err != nil {
		return nil, unavailable("predict", err)
	}

	current := series.Last().Close
	forecasts := make(models.BucketForecasts, len(models.NeuralHorizons))
	for bucket, hs := range models.NeuralHorizons {
		forecasts[bucket] = make(map[int]models.HorizonForecast, len(hs))
		for _, h := range hs {
			price := daily[h-1]
			fc := models.NewHorizonForecast(h, current, price)
			u := IntervalFor(h)
			fc.ConfidenceInterval = &models.ConfidenceInterval{
				Lower:          price * (1 - u),
				Upper:          price * (1 + u),
				UncertaintyPct: u * 100,
			}
			forecasts[bucket][h] = fc
		}
	}

	summary := &models.NeuralSummary{
		Trend:            DetermineTrend(current, daily),
		Confidence:       Confidence(trainRMSE, testRMSE, stat.Mean(ds.Prices, nil), len(ds.Prices)),
		Forecasts:        forecasts,
		TrainRMSE:        trainRMSE,
		TestRMSE:         testRMSE,
		DataPoints:       len(ds.Prices),
		TrainedAt:        entry.TrainedAt,
		Runtime:          p.runtime.Name(),
		DailyPredictions: daily,
	}
	p.log.Info("neural forecast ready",
		logger.String("symbol", series.Symbol()),
		logger.String("trend", string(summary.Trend)),
		logger.Float("confidence", summary.Confidence),
		logger.Float("test_rmse", testRMSE),
	)
	return summary, nil
}

// rmse is measured on the price scale.
func rmse(ctx context.Context, model service.SequenceModel, x [][]float64, y []float64, scaler Scaler) (float64, error) {
	if len(x) == 0 {
		return math.NaN(), nil
	}
	var sse float64
	for i := range x {
		pred, err := model.Predict(ctx, x[i])
		if err != nil {
			return 0, err
		}
		d := scaler.Inverse(pred) - scaler.Inverse(y[i])
		sse += d * d
	}
	return math.Sqrt(sse / float64(len(x))), nil
}

func unavailable(stage string, err error) error {
	if errors.Is(err, models.ErrModelUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", models.ErrModelUnavailable, stage, err)
}
