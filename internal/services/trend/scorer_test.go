package trend

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/indicators"
)

func series(t *testing.T, closes []float64) *models.PriceSeries {
	t.Helper()
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	s, err := models.NewPriceSeries("TREND", bars)
	require.NoError(t, err)
	return s
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestScoreRising(t *testing.T) {
	s := series(t, ramp(60, 100, 1))
	set, err := indicators.NewEngine().Compute(s)
	require.NoError(t, err)

	got := NewScorer().Score(s, set)
	assert.Equal(t, 5, got.Score)
	assert.Equal(t, models.Bullish, got.Direction)
	assert.Equal(t, models.StrongBullish, got.Strength)
	assert.Equal(t, []string{
		SignalAboveSMA5, SignalAboveSMA20, SignalAboveSMA50, SignalSMA5OverSMA20, SignalSMA20OverSMA50,
	}, got.Signals)
	assert.InDelta(t, (159.0/154.0-1)*100, got.Momentum5D, 1e-9)
	assert.InDelta(t, (159.0/139.0-1)*100, got.Momentum20D, 1e-9)
	assert.Equal(t, 140.0, got.SupportLevel)
	assert.Equal(t, 159.0, got.ResistanceLevel)
}

func TestScoreFalling(t *testing.T) {
	s := series(t, ramp(60, 200, -1))
	set, err := indicators.NewEngine().Compute(s)
	require.NoError(t, err)

	got := NewScorer().Score(s, set)
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, models.Bearish, got.Direction)
	assert.Equal(t, models.StrongBearish, got.Strength)
	assert.Empty(t, got.Signals)
}

func TestMissingInputsAreNotTriggered(t *testing.T) {
	// 30 bars: no sma_50, so at most three rules can fire
	s := series(t, ramp(30, 100, 1))
	set, err := indicators.NewEngine().Compute(s)
	require.NoError(t, err)

	got := NewScorer().Score(s, set)
	assert.Equal(t, 3, got.Score)
	assert.Equal(t, models.Bullish, got.Direction)
	assert.Equal(t, models.ModerateBullish, got.Strength)
}

func TestScoreMapping(t *testing.T) {
	tests := []struct {
		score     int
		direction models.Direction
		strength  models.Strength
	}{
		{0, models.Bearish, models.StrongBearish},
		{1, models.Bearish, models.ModerateBearish},
		{2, models.Neutral, models.NeutralStrength},
		{3, models.Bullish, models.ModerateBullish},
		{4, models.Bullish, models.StrongBullish},
		{5, models.Bullish, models.StrongBullish},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.direction, DirectionFor(tt.score))
		assert.Equal(t, tt.strength, StrengthFor(tt.score))
	}
}

func TestScoreIsDeterministicAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	scorer := NewScorer()
	engine := indicators.NewEngine()
	for i := 0; i < 50; i++ {
		closes := make([]float64, 80)
		p := 100.0
		for j := range closes {
			p *= 1 + rng.NormFloat64()*0.02
			closes[j] = p
		}
		s := series(t, closes)
		set, err := engine.Compute(s)
		require.NoError(t, err)

		first := scorer.Score(s, set)
		second := scorer.Score(s, set)
		assert.Equal(t, first, second)
		assert.GreaterOrEqual(t, first.Score, 0)
		assert.LessOrEqual(t, first.Score, 5)
	}
}
