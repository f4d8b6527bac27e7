package risk

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func dated(values []float64, offset int) []models.DatedReturn {
	out := make([]models.DatedReturn, len(values))
	for i, v := range values {
		out[i] = models.DatedReturn{Time: day0.AddDate(0, 0, i+offset), Value: v}
	}
	return out
}

func TestAssessInsufficientData(t *testing.T) {
	_, err := NewCalculator().Assess(dated(make([]float64, 9), 0), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestVaRMatchesKnownPercentile(t *testing.T) {
	// -0.050, -0.049, ..., 0.050: the 5th percentile sits exactly on -0.045
	values := make([]float64, 101)
	for i := range values {
		values[i] = -0.05 + 0.001*float64(i)
	}
	rng := rand.New(rand.NewSource(3))
	rng.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })

	p, err := NewCalculator().Assess(dated(values, 0), nil)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, p.VaR95Pct, 1e-9)
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, -0.5, MaxDrawdown([]float64{0.1, -0.5, 0.2}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown([]float64{0.01, 0.02, 0.03}))

	values := []float64{0.1, -0.5, 0.2, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01}
	p, err := NewCalculator().Assess(dated(values, 0), nil)
	require.NoError(t, err)
	assert.InDelta(t, -50, p.MaxDrawdownPct, 1e-9)
	assert.LessOrEqual(t, p.MaxDrawdownPct, 0.0)
}

func TestSharpe(t *testing.T) {
	values := []float64{0.01, -0.005, 0.02, 0.0, 0.003, -0.01, 0.015, 0.002, -0.002, 0.007}
	got, err := Sharpe(values, 0.03)
	require.NoError(t, err)

	var mean float64
	for _, v := range values {
		mean += v - 0.03/252
	}
	mean /= float64(len(values))
	var ss float64
	for _, v := range values {
		d := v - 0.03/252 - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(values)-1))
	assert.InDelta(t, mean/std*math.Sqrt(252), got, 1e-9)
}

func TestSharpeZeroVarianceIsComputationError(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 0.001
	}
	p, err := NewCalculator().Assess(dated(values, 0), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrComputation))
	// the remaining figures are still reported
	assert.Equal(t, models.RiskLow, p.RiskLevel)
	assert.Equal(t, DefaultBeta, p.Beta)
}

func TestRiskFreeRateOption(t *testing.T) {
	values := []float64{0.01, -0.005, 0.02, 0.0, 0.003, -0.01, 0.015, 0.002, -0.002, 0.007}
	low, err := NewCalculator(WithRiskFreeRate(0)).Assess(dated(values, 0), nil)
	require.NoError(t, err)
	high, err := NewCalculator(WithRiskFreeRate(0.10)).Assess(dated(values, 0), nil)
	require.NoError(t, err)
	assert.Greater(t, low.SharpeRatio, high.SharpeRatio)
}

func TestBeta(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	bench := make([]float64, 80)
	asset := make([]float64, 80)
	for i := range bench {
		bench[i] = rng.NormFloat64() * 0.01
		asset[i] = 2 * bench[i]
	}

	assert.InDelta(t, 2.0, Beta(dated(asset, 0), dated(bench, 0)), 1e-9)

	// 30 shifted days leave 50 overlapping observations
	assert.InDelta(t, 2.0, Beta(dated(asset, 0), shifted(bench, asset, 30)), 1e-9)
	// 31 leave 49: default
	assert.Equal(t, DefaultBeta, Beta(dated(asset, 0), shifted(bench, asset, 31)))

	assert.Equal(t, DefaultBeta, Beta(dated(asset, 0), nil))
	assert.Equal(t, DefaultBeta, Beta(dated(asset, 0), dated(make([]float64, 80), 0)))
}

// shifted keeps the same values on the overlapping dates of a benchmark
// that starts offset days later.
func shifted(bench, asset []float64, offset int) []models.DatedReturn {
	out := dated(bench, 0)[offset:]
	return append(out, dated(make([]float64, offset), len(asset))...)
}

func TestClassifyThresholds(t *testing.T) {
	tests := []struct {
		vol  float64
		want models.RiskLevel
	}{
		{0, models.RiskLow},
		{14.99, models.RiskLow},
		{15, models.RiskMedium},
		{24.99, models.RiskMedium},
		{25, models.RiskHigh},
		{39.99, models.RiskHigh},
		{40, models.RiskVeryHigh},
		{120, models.RiskVeryHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.vol), "vol %v", tt.vol)
	}
}

func TestRiskLevelIsMonotonicInDispersion(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	calc := NewCalculator()
	for trial := 0; trial < 200; trial++ {
		z := make([]float64, 60)
		var mean float64
		for i := range z {
			z[i] = rng.NormFloat64()
			mean += z[i]
		}
		mean /= float64(len(z))

		lowScale := rng.Float64() * 0.03
		highScale := lowScale + 0.0001 + rng.Float64()*0.03
		low := make([]float64, len(z))
		high := make([]float64, len(z))
		for i := range z {
			low[i] = 0.0005 + lowScale*(z[i]-mean)
			high[i] = 0.0005 + highScale*(z[i]-mean)
		}

		a, err := calc.Assess(dated(low, 0), nil)
		require.NoError(t, err)
		b, err := calc.Assess(dated(high, 0), nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, b.RiskLevel.Rank(), a.RiskLevel.Rank())
	}
}
