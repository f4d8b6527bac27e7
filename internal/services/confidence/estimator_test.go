package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
)

func series(t *testing.T, closes, volumes []float64) *models.PriceSeries {
	t.Helper()
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
		if volumes != nil {
			bars[i].Volume = volumes[i]
		}
	}
	s, err := models.NewPriceSeries("CONF", bars)
	require.NoError(t, err)
	return s
}

func linear(n int, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + step*float64(i)
	}
	return out
}

func TestTrendConsistency(t *testing.T) {
	assert.Equal(t, 100.0, TrendConsistency(linear(60, 1)))
	assert.Equal(t, 100.0, TrendConsistency(linear(60, -0.5)))

	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 42
	}
	assert.Equal(t, 0.0, TrendConsistency(flat))

	// 30 bars: the window is indexes 15..29 but SMA20 starts at index 19
	assert.InDelta(t, 11.0/15*100, TrendConsistency(linear(30, 1)), 1e-9)
	assert.Equal(t, 0.0, TrendConsistency(linear(10, 1)))
}

func TestVolumeScore(t *testing.T) {
	tests := []struct {
		ratio float64
		want  float64
	}{
		{1.0, 80}, {0.8, 80}, {1.5, 80},
		{0.5, 60}, {1.9, 60}, {2.0, 60},
		{0.49, 30}, {2.01, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VolumeScore(tt.ratio), "ratio %v", tt.ratio)
	}
}

func TestEstimateWeights(t *testing.T) {
	closes := linear(126, 1)
	volumes := make([]float64, len(closes))
	for i := range volumes {
		volumes[i] = 1000
	}
	s := series(t, closes, volumes)
	set := models.IndicatorSet{
		models.IndVolatility:  10,
		models.IndVolumeRatio: 1,
	}

	c := NewEstimator().Components(s, set)
	assert.InDelta(t, 50, c.DataQuality, 1e-9)
	assert.InDelta(t, 80, c.VolatilityScore, 1e-9)
	assert.InDelta(t, 100, c.TrendConsistency, 1e-9)
	assert.InDelta(t, 80, c.VolumeScore, 1e-9)

	got := NewEstimator().Estimate(s, set)
	assert.InDelta(t, 0.2*50+0.3*80+0.3*100+0.2*80, got.ShortTerm, 1e-9)
	assert.InDelta(t, 0.3*50+0.2*80+0.4*100+0.1*80, got.MediumTerm, 1e-9)
	assert.InDelta(t, 0.4*50+0.1*80+0.5*100, got.LongTerm, 1e-9)
}

func TestEstimateWithoutVolume(t *testing.T) {
	s := series(t, linear(400, 0.1), nil)
	set := models.IndicatorSet{models.IndVolatility: 60}

	c := NewEstimator().Components(s, set)
	assert.Equal(t, 100.0, c.DataQuality)
	assert.Equal(t, 0.0, c.VolatilityScore)
	assert.Equal(t, 50.0, c.VolumeScore)

	got := NewEstimator().Estimate(s, set)
	for _, b := range models.Buckets {
		assert.GreaterOrEqual(t, got.For(b), 0.0)
		assert.LessOrEqual(t, got.For(b), 100.0)
	}
}
