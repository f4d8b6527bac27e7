package risk

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/indicators"
)

const (
	// MinReturns is the fewest return observations Assess accepts.
	MinReturns = 10
	// MinBetaOverlap is the fewest date-aligned observations needed for beta.
	MinBetaOverlap = 50
	// DefaultRiskFreeRate is the annual rate subtracted for the Sharpe ratio.
	DefaultRiskFreeRate = 0.03
	// DefaultBeta is reported when no usable benchmark is available.
	DefaultBeta = 1.0

	flatTolerance = 1e-12
)

// Calculator derives a RiskProfile from daily returns.
type Calculator struct {
	riskFreeRate float64
}

// Option configures Calculator.
type Option func(*Calculator)

// WithRiskFreeRate overrides the annual risk-free rate.
func WithRiskFreeRate(rate float64) Option {
	return func(c *Calculator) { c.riskFreeRate = rate }
}

// NewCalculator creates a risk calculator.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{riskFreeRate: DefaultRiskFreeRate}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RiskFreeRate returns the configured annual rate.
func (c *Calculator) RiskFreeRate() float64 { return c.riskFreeRate }

// Assess computes the profile of returns. Benchmark may be nil.
//
// A Sharpe ratio that cannot be computed yields the rest of the profile
// together with an error wrapping models.ErrComputation.
func (c *Calculator) Assess(returns, benchmark []models.DatedReturn) (models.RiskProfile, error) {
	if len(returns) < MinReturns {
		return models.RiskProfile{}, models.NewInsufficientData("risk", MinReturns, len(returns))
	}
	values := models.ReturnValues(returns)

	vol := indicators.Annualize(stat.StdDev(values, nil))
	profile := models.RiskProfile{
		RiskLevel:      Classify(vol),
		VolatilityPct:  vol,
		VaR95Pct:       math.Abs(indicators.Percentile(values, 5)) * 100,
		MaxDrawdownPct: MaxDrawdown(values) * 100,
		Beta:           Beta(returns, benchmark),
	}

	sharpe, err := Sharpe(values, c.riskFreeRate)
	if err != nil {
		return profile, err
	}
	profile.SharpeRatio = sharpe
	return profile, nil
}

// Classify maps annualized volatility in percent to a risk level.
func Classify(volatilityPct float64) models.RiskLevel {
	switch {
	case volatilityPct < 15:
		return models.RiskLow
	case volatilityPct < 25:
		return models.RiskMedium
	case volatilityPct < 40:
		return models.RiskHigh
	default:
		return models.RiskVeryHigh
	}
}

// MaxDrawdown is the most negative (wealth - peak) / peak of the compounded
// return path, as a fraction. It is never positive.
func MaxDrawdown(returns []float64) float64 {
	wealth := 1.0
	peak := math.Inf(-1)
	worst := 0.0
	for _, r := range returns {
		wealth *= 1 + r
		peak = math.Max(peak, wealth)
		if dd := (wealth - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

// Sharpe is the annualized mean over stddev of excess daily returns.
func Sharpe(returns []float64, annualRiskFree float64) (float64, error) {
	if len(returns) < 2 {
		return 0, models.NewInsufficientData("sharpe", 2, len(returns))
	}
	daily := annualRiskFree / indicators.TradingDays
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - daily
	}
	mean, std := stat.MeanStdDev(excess, nil)
	if std < flatTolerance || math.IsNaN(std) {
		return 0, models.Computationf("sharpe: excess returns have zero variance")
	}
	return mean / std * math.Sqrt(indicators.TradingDays), nil
}

// Beta regresses returns on benchmark over the dates both share. Fewer than
// MinBetaOverlap shared dates or a flat benchmark gives DefaultBeta.
func Beta(returns, benchmark []models.DatedReturn) float64 {
	if len(benchmark) == 0 {
		return DefaultBeta
	}
	a, b := Align(returns, benchmark)
	if len(a) < MinBetaOverlap {
		return DefaultBeta
	}
	variance := stat.Variance(b, nil)
	if variance < flatTolerance*flatTolerance || math.IsNaN(variance) {
		return DefaultBeta
	}
	return stat.Covariance(a, b, nil) / variance
}

// Align returns the values of x and y observed on the same calendar day, in time order.
func Align(x, y []models.DatedReturn) ([]float64, []float64) {
	byDay := make(map[time.Time]float64, len(y))
	for _, r := range y {
		byDay[day(r.Time)] = r.Value
	}
	var ax, ay []float64
	for _, r := range x {
		if v, ok := byDay[day(r.Time)]; ok {
			ax = append(ax, r.Value)
			ay = append(ay, v)
		}
	}
	return ax, ay
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
