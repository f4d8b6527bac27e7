package neural

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
)

func TestIntervalTable(t *testing.T) {
	want := map[int]float64{1: 0.05, 3: 0.08, 7: 0.12, 14: 0.18, 30: 0.25, 60: 0.35, 90: 0.45}
	for d, u := range want {
		assert.Equal(t, u, IntervalFor(d), "day %d", d)
	}
	assert.Equal(t, 0.45, IntervalFor(180))
}

func TestConfidence(t *testing.T) {
	// 95 + 3 is capped
	assert.InDelta(t, 95.0, Confidence(1, 1, 100, 300), 1e-9)
	assert.InDelta(t, 100*(1-5*4.0/100)+3, Confidence(3, 4, 100, 300), 1e-9)

	// overfitting: test error three times the training error costs 20
	assert.InDelta(t, 100*(1-5*6.0/100)-20+3, Confidence(2, 6, 100, 300), 1e-9)
	// 1.6x costs 6
	assert.InDelta(t, 100*(1-5*1.6/100)-6+2, Confidence(1, 1.6, 100, 200), 1e-9)

	assert.Equal(t, 20.0, Confidence(1, 50, 100, 1000))
	assert.Equal(t, 20.0, Confidence(1, 1, 0, 300))
	for _, pts := range []int{0, 200, 5000} {
		c := Confidence(0.5, 2, 80, pts)
		assert.GreaterOrEqual(t, c, 20.0)
		assert.LessOrEqual(t, c, 95.0)
	}
}

func path(current float64, c7, c30 float64) []float64 {
	out := make([]float64, 30)
	for i := range out {
		out[i] = current
	}
	out[6] = current * (1 + c7/100)
	out[29] = current * (1 + c30/100)
	return out
}

func TestDetermineTrend(t *testing.T) {
	tests := []struct {
		name     string
		c7, c30  float64
		expected models.Direction
	}{
		{"both up", 2.5, 3.5, models.Bullish},
		{"both down", -2.5, -3.5, models.Bearish},
		{"both flat", 1, -2, models.Neutral},
		{"mixed resolved up", -2.5, 1, models.Bullish},
		{"mixed resolved down", 2.5, -1, models.Bearish},
		{"short up long flat", 3, 0, models.Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetermineTrend(100, path(100, tt.c7, tt.c30)))
		})
	}
	assert.Equal(t, models.Neutral, DetermineTrend(100, nil))
}

func TestPredictFallsBackBelowMinimumPoints(t *testing.T) {
	rt := &stubRuntime{}
	p := NewPredictor(rt, NewModelCache())
	_, err := p.Predict(context.Background(), closesSeries(t, "SHORT", wave(150)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))
	assert.Equal(t, 0, rt.Calls())
}

func TestPredictWithDisabledRuntime(t *testing.T) {
	p := NewPredictor(nil, nil)
	assert.Equal(t, "disabled", p.Runtime())
	_, err := p.Predict(context.Background(), closesSeries(t, "OFF", wave(300)))
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))
}

func TestPredictWrapsTrainingFailure(t *testing.T) {
	rt := &stubRuntime{err: errors.New("nan loss")}
	p := NewPredictor(rt, NewModelCache())
	_, err := p.Predict(context.Background(), closesSeries(t, "BAD", wave(300)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))
	assert.Contains(t, err.Error(), "nan loss")
}

func TestPredictTimesOut(t *testing.T) {
	rt := &stubRuntime{delay: 200 * time.Millisecond}
	p := NewPredictor(rt, NewModelCache())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Predict(ctx, closesSeries(t, "SLOW", wave(300)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPredictSummary(t *testing.T) {
	clock := newFakeClock()
	rt := &stubRuntime{}
	p := NewPredictor(rt, NewModelCache(WithClock(clock.Now)),
		WithSpec(service.ModelSpec{LookBack: 30, Seed: 9}),
		WithMinPoints(100),
	)
	series := closesSeries(t, "PERS", wave(300))

	sum, err := p.Predict(context.Background(), series)
	require.NoError(t, err)

	assert.Equal(t, "stub", sum.Runtime)
	assert.Equal(t, 300, sum.DataPoints)
	assert.Equal(t, clock.Now(), sum.TrainedAt)
	assert.Len(t, sum.DailyPredictions, 90)
	assert.Equal(t, 30, rt.lastSpec.LookBack)
	assert.EqualValues(t, 9, rt.lastSpec.Seed)
	assert.Equal(t, 240-30, rt.lastTrain)

	// a persistence model projects the last close flat
	current := series.Last().Close
	for _, v := range sum.DailyPredictions {
		assert.InDelta(t, current, v, 1e-9)
	}
	assert.Equal(t, models.Neutral, sum.Trend)
	assert.GreaterOrEqual(t, sum.Confidence, 20.0)
	assert.LessOrEqual(t, sum.Confidence, 95.0)
	assert.Greater(t, sum.TrainRMSE, 0.0)

	assert.Equal(t, []int{1, 3, 7}, sum.Forecasts.Horizons(models.ShortTerm))
	assert.Equal(t, []int{14, 30}, sum.Forecasts.Horizons(models.MediumTerm))
	assert.Equal(t, []int{60, 90}, sum.Forecasts.Horizons(models.LongTerm))
	fc := sum.Forecasts[models.MediumTerm][30]
	require.NotNil(t, fc.ConfidenceInterval)
	assert.InDelta(t, 25.0, fc.ConfidenceInterval.UncertaintyPct, 1e-9)
	assert.InDelta(t, fc.PredictedPrice*0.75, fc.ConfidenceInterval.Lower, 1e-9)
	assert.InDelta(t, fc.PredictedPrice*1.25, fc.ConfidenceInterval.Upper, 1e-9)

	// second call inside the TTL reuses the model
	again, err := p.Predict(context.Background(), series)
	require.NoError(t, err)
	assert.Equal(t, sum.TrainedAt, again.TrainedAt)
	assert.Equal(t, 1, rt.Calls())
}

func TestPredictTrendFollowsModelDrift(t *testing.T) {
	rt := &stubRuntime{drift: 0.02}
	p := NewPredictor(rt, NewModelCache(), WithSpec(service.ModelSpec{LookBack: 20}), WithMinPoints(100))
	sum, err := p.Predict(context.Background(), closesSeries(t, "UP", wave(300)))
	require.NoError(t, err)
	assert.Equal(t, models.Bullish, sum.Trend)
	assert.Greater(t, sum.Forecasts[models.MediumTerm][30].ChangePct, 0.0)
}

func TestPredictRejectsUnavailableRuntime(t *testing.T) {
	rt := &stubRuntime{unusable: true}
	p := NewPredictor(rt, NewModelCache())
	_, err := p.Train(context.Background(), ShapeKey("X", 60), [][]float64{{1}}, []float64{1})
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))
	assert.Equal(t, 0, rt.Calls())
}
