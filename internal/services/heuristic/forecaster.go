package heuristic

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/pkg/logger"
)

// Horizons are the canonical heuristic horizons in days.
var Horizons = []int{1, 3, 7, 14, 30, 60, 90, 180}

// Signals are the indicator readings the projection depends on.
// A reading with its Has flag unset contributes nothing.
type Signals struct {
	VolatilityFraction float64
	RSI                float64
	HasRSI             bool
	BBPosition         float64
	HasBBPosition      bool
	MACD               float64
	MACDSignal         float64
	HasMACD            bool
}

// SignalsFrom extracts Signals from an indicator set.
func SignalsFrom(set models.IndicatorSet) (Signals, error) {
	vol, ok := set.Get(models.IndVolatility)
	if !ok || math.IsNaN(vol) || math.IsInf(vol, 0) || vol < 0 {
		return Signals{}, models.Computationf("heuristic: volatility unavailable")
	}
	s := Signals{VolatilityFraction: vol / 100}
	s.RSI, s.HasRSI = set.Get(models.IndRSI)
	s.BBPosition, s.HasBBPosition = set.Get(models.IndBBPosition)
	if set.Has(models.IndMACD, models.IndMACDSignal) {
		s.MACD, s.MACDSignal, s.HasMACD = set[models.IndMACD], set[models.IndMACDSignal], true
	}
	return s, nil
}

// TrendMultiplier sums the RSI, Bollinger and MACD votes.
func TrendMultiplier(s Signals) float64 {
	m := 0.0
	if s.HasRSI {
		switch {
		case s.RSI > 70:
			m -= 0.3
		case s.RSI < 30:
			m += 0.3
		case s.RSI >= 40 && s.RSI <= 60:
			m += 0.1
		}
	}
	if s.HasBBPosition {
		switch {
		case s.BBPosition > 0.8:
			m -= 0.2
		case s.BBPosition < 0.2:
			m += 0.2
		}
	}
	if s.HasMACD {
		if s.MACD > s.MACDSignal {
			m += 0.1
		} else {
			m -= 0.1
		}
	}
	return m
}

// MaxChange is the absolute cap on the fractional change at horizon days.
func MaxChange(volFraction float64, days int) float64 {
	return math.Min(0.3, volFraction*2*float64(days)/30)
}

// Change returns the clamped fractional change for horizon days given a draw
// z from the standard normal distribution.
func Change(s Signals, days int, z float64) float64 {
	d := float64(days)
	scale := d / 30
	timeFactor := math.Sqrt(d / 365)
	vf := s.VolatilityFraction

	noise := z * vf * 0.1 * timeFactor
	change := TrendMultiplier(s)*vf*timeFactor + noise

	if s.HasRSI {
		switch {
		case s.RSI > 80:
			change -= 0.05 * scale
		case s.RSI > 70:
			change -= 0.02 * scale
		case s.RSI < 20:
			change += 0.05 * scale
		case s.RSI < 30:
			change += 0.02 * scale
		}
	}
	if s.HasBBPosition {
		switch {
		case s.BBPosition > 0.9:
			change -= 0.03 * scale
		case s.BBPosition > 0.8:
			change -= 0.01 * scale
		case s.BBPosition < 0.1:
			change += 0.03 * scale
		case s.BBPosition < 0.2:
			change += 0.01 * scale
		}
	}
	if s.HasMACD {
		change += sign(s.MACD-s.MACDSignal) * math.Min(0.02, vf*0.1) * scale
	}

	limit := MaxChange(vf, days)
	return math.Max(-limit, math.Min(limit, change))
}

// Forecaster projects prices with a bounded stochastic component.
type Forecaster struct {
	mu  sync.Mutex
	rng *rand.Rand
	log *logger.Logger
}

// Option configures Forecaster.
type Option func(*Forecaster)

// WithRand injects the random source used for the noise term.
func WithRand(r *rand.Rand) Option {
	return func(f *Forecaster) {
		if r != nil {
			f.rng = r
		}
	}
}

// WithSeed seeds a private random source.
func WithSeed(seed int64) Option {
	return func(f *Forecaster) { f.rng = rand.New(rand.NewSource(seed)) }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(f *Forecaster) {
		if l != nil {
			f.log = l
		}
	}
}

// NewForecaster creates a forecaster. Without WithRand or WithSeed the source
// is seeded from the clock.
func NewForecaster(opts ...Option) *Forecaster {
	f := &Forecaster{log: logger.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return f
}

// Forecast projects the last close over every canonical horizon. The trend
// assessment is accepted for interface symmetry with the neural forecaster;
// the projection itself is driven by the oscillators.
func (f *Forecaster) Forecast(series *models.PriceSeries, set models.IndicatorSet, _ models.TrendAssessment) (models.BucketForecasts, error) {
	if series == nil || series.Len() == 0 {
		return nil, models.NewInsufficientData("heuristic", 1, 0)
	}
	signals, err := SignalsFrom(set)
	if err != nil {
		return nil, err
	}
	current := series.Last().Close

	draws := f.draw(len(Horizons))
	out := make(models.BucketForecasts, len(models.Buckets))
	for i, d := range Horizons {
		bucket, ok := BucketOf(d)
		if !ok {
			continue
		}
		if out[bucket] == nil {
			out[bucket] = make(map[int]models.HorizonForecast)
		}
		change := Change(signals, d, draws[i])
		out[bucket][d] = models.NewHorizonForecast(d, current, current*(1+change))
	}

	f.log.Debug("heuristic forecast",
		logger.String("symbol", series.Symbol()),
		logger.Float("volatility", signals.VolatilityFraction*100),
		logger.Float("trend_multiplier", TrendMultiplier(signals)),
	)
	return out, nil
}

func (f *Forecaster) draw(n int) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, n)
	for i := range out {
		out[i] = f.rng.NormFloat64()
	}
	return out
}

// BucketOf returns the heuristic bucket holding horizon days.
func BucketOf(days int) (models.Bucket, bool) {
	for _, b := range models.Buckets {
		for _, h := range models.HeuristicHorizons[b] {
			if h == days {
				return b, true
			}
		}
	}
	return "", false
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
