package indicators

import (
	"math"

	"PriceCast/internal/domain/models"
	"PriceCast/pkg/logger"
)

const (
	// MinBars is the shortest series the engine accepts.
	MinBars = 20
	// TradingDays is the number of sessions used to annualize.
	TradingDays = 252

	rsiPeriod        = 14
	stochPeriod      = 14
	atrPeriod        = 14
	bollingerPeriod  = 20
	bollingerWidth   = 2.0
	volatilityWindow = 20
	volumePeriod     = 20
)

// Engine computes technical indicators for the last bar of a series.
type Engine struct {
	log *logger.Logger
}

// Option configures Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an indicator engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute returns the indicator set of the last bar. Indicators whose window
// is not filled or whose denominator is zero are left out of the set.
func (e *Engine) Compute(series *models.PriceSeries) (models.IndicatorSet, error) {
	if series == nil || series.Len() < MinBars {
		got := 0
		if series != nil {
			got = series.Len()
		}
		return nil, models.NewInsufficientData("indicators", MinBars, got)
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	volumes := series.Volumes()
	last := closes[len(closes)-1]

	set := models.IndicatorSet{}
	put := func(key string, v float64) {
		if finite(v) {
			set[key] = v
		}
	}

	put(models.IndSMA5, Mean(closes, 5))
	put(models.IndSMA20, Mean(closes, 20))
	put(models.IndSMA50, Mean(closes, 50))
	put(models.IndSMA200, Mean(closes, 200))

	ema12 := EMASeries(closes, 12)
	ema26 := EMASeries(closes, 26)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = ema12[i] - ema26[i]
	}
	signal := EMASeries(macd, 9)
	n := len(closes) - 1
	put(models.IndEMA12, ema12[n])
	put(models.IndEMA26, ema26[n])
	put(models.IndMACD, macd[n])
	put(models.IndMACDSignal, signal[n])
	put(models.IndMACDHistogram, macd[n]-signal[n])

	put(models.IndRSI, rsi(closes, rsiPeriod))

	mid := Mean(closes, bollingerPeriod)
	sd := StdDev(closes, bollingerPeriod)
	upper, lower := mid+bollingerWidth*sd, mid-bollingerWidth*sd
	put(models.IndBBMiddle, mid)
	put(models.IndBBUpper, upper)
	put(models.IndBBLower, lower)
	if upper > lower {
		put(models.IndBBPosition, (last-lower)/(upper-lower))
	}

	k := stochasticK(closes, highs, lows, stochPeriod)
	put(models.IndStochK, k[n])
	put(models.IndStochD, Mean(k, 3))
	if hh, ll := RollingMax(highs, stochPeriod), RollingMin(lows, stochPeriod); hh > ll {
		put(models.IndWilliamsR, -100*(hh-last)/(hh-ll))
	}

	put(models.IndATR, Mean(trueRange(closes, highs, lows), atrPeriod))

	if series.HasVolume() {
		volSMA := Mean(volumes, volumePeriod)
		put(models.IndVolumeSMA, volSMA)
		if volSMA > 0 {
			put(models.IndVolumeRatio, volumes[n]/volSMA)
		}
		obv := onBalanceVolume(closes, volumes)
		put(models.IndOBV, obv[n])
		put(models.IndOBVTrend, Mean(obv, 10)-Mean(obv, 20))
	}

	returns := SimpleReturns(closes)
	put(models.IndVolatility, Annualize(StdDev(returns, min(volatilityWindow, len(returns)))))

	e.log.Debug("indicators computed",
		logger.String("symbol", series.Symbol()),
		logger.Int("bars", series.Len()),
		logger.Int("indicators", len(set)),
	)
	return set, nil
}

// rsi averages gains and losses over the last period deltas. The first bar has
// no delta and counts as unchanged. A flat window is 50, a window without losses 100.
func rsi(closes []float64, period int) float64 {
	if len(closes) < period {
		return math.NaN()
	}
	var gain, loss float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		if i == 0 {
			continue
		}
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	switch {
	case loss == 0 && gain == 0:
		return 50
	case loss == 0:
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

func stochasticK(closes, highs, lows []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		hh := RollingMax(highs[:i+1], period)
		ll := RollingMin(lows[:i+1], period)
		if hh <= ll {
			out[i] = math.NaN()
			continue
		}
		out[i] = 100 * (closes[i] - ll) / (hh - ll)
	}
	return out
}

func trueRange(closes, highs, lows []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		tr := highs[i] - lows[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(highs[i]-closes[i-1]))
			tr = math.Max(tr, math.Abs(lows[i]-closes[i-1]))
		}
		out[i] = tr
	}
	return out
}

func onBalanceVolume(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		out[i] = out[i-1] + volumes[i]*sign(closes[i]-closes[i-1])
	}
	return out
}
