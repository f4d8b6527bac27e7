package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/heuristic"
)

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// uptrend rises 5/21 per day for 297 days, then pulls back 1.5 three times.
// The pullback takes RSI and the Bollinger position out of overbought
// territory; a series that never pauses is covered by steadyUptrend.
func uptrend(symbol string) *models.PriceSeries {
	bars := make([]models.Bar, 0, 300)
	price := 0.0
	for i := 0; i < 300; i++ {
		if i < 297 {
			price = 100 + 5.0/21*float64(i)
		} else {
			price -= 1.5
		}
		bars = append(bars, models.Bar{
			Time:   day0.AddDate(0, 0, i),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		})
	}
	return mustSeries(symbol, bars)
}

// steadyUptrend grows linearly by 5% of the first close per 21 bars, with no pause.
func steadyUptrend(symbol string) *models.PriceSeries {
	return linear(symbol, 300, 100, 5.0/21)
}

func linear(symbol string, n int, start, step float64) *models.PriceSeries {
	bars := make([]models.Bar, n)
	for i := range bars {
		price := start + step*float64(i)
		bars[i] = models.Bar{
			Time:   day0.AddDate(0, 0, i),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		}
	}
	return mustSeries(symbol, bars)
}

func flat(symbol string, n int, price float64) *models.PriceSeries {
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{
			Time:   day0.AddDate(0, 0, i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 500,
		}
	}
	return mustSeries(symbol, bars)
}

func mustSeries(symbol string, bars []models.Bar) *models.PriceSeries {
	s, err := models.NewPriceSeries(symbol, bars)
	if err != nil {
		panic(err)
	}
	return s
}

func newTestOrchestrator(opts ...OrchestratorOption) *ForecastOrchestrator {
	base := []OrchestratorOption{
		WithOrchestratorClock(func() time.Time { return day0.AddDate(1, 0, 0) }),
	}
	return NewForecastOrchestrator(nil, nil, nil, heuristic.NewForecaster(heuristic.WithSeed(7)), nil, append(base, opts...)...)
}

type fakeNeural struct {
	mu      sync.Mutex
	calls   int
	summary *models.NeuralSummary
	err     error
	block   bool
}

func (f *fakeNeural) Predict(ctx context.Context, series *models.PriceSeries) (*models.NeuralSummary, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.summary, f.err
}

func (f *fakeNeural) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// neuralSummary projects current*(1+pct/100) at every neural horizon.
func neuralSummary(current, pct, confidence float64) *models.NeuralSummary {
	fcs := make(models.BucketForecasts)
	for b, hs := range models.NeuralHorizons {
		fcs[b] = make(map[int]models.HorizonForecast)
		for _, h := range hs {
			fcs[b][h] = models.NewHorizonForecast(h, current, current*(1+pct/100))
		}
	}
	return &models.NeuralSummary{
		Trend:      models.Bullish,
		Confidence: confidence,
		Forecasts:  fcs,
		Runtime:    "fake",
	}
}

// driftRuntime trains models that repeat the last normalized value of the
// window shifted by drift, so a negative drift walks the path below zero.
type driftRuntime struct{ drift float64 }

func (driftRuntime) Name() string    { return "drift" }
func (driftRuntime) Available() bool { return true }

func (r driftRuntime) Train(context.Context, [][]float64, []float64, service.ModelSpec) (*service.TrainResult, error) {
	return &service.TrainResult{Model: driftModel(r.drift), Epochs: 1}, nil
}

type driftModel float64

func (m driftModel) Predict(_ context.Context, window []float64) (float64, error) {
	return window[len(window)-1] + float64(m), nil
}

type recordingMetrics struct {
	mu        sync.Mutex
	forecasts map[string]int
	fallbacks map[string]int
	errors    map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		forecasts: map[string]int{},
		fallbacks: map[string]int{},
		errors:    map[string]int{},
	}
}

func (m *recordingMetrics) RecordForecast(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecasts[method]++
}

func (m *recordingMetrics) RecordNeuralFallback(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks[reason]++
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *recordingMetrics) RecordModelCache(string)         {}
func (m *recordingMetrics) RecordLastPrice(string, float64) {}
func (m *recordingMetrics) RecordLatency(string, float64)   {}

func (m *recordingMetrics) fallback(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fallbacks[reason]
}

type fakeProvider struct {
	mu     sync.Mutex
	series map[string]*models.PriceSeries
	err    error
	calls  map[string]int
	// gate, when set, holds every fetch until it is closed or ctx ends
	gate   chan struct{}
}

func newFakeProvider(series ...*models.PriceSeries) *fakeProvider {
	p := &fakeProvider{series: map[string]*models.PriceSeries{}, calls: map[string]int{}}
	for _, s := range series {
		p.series[s.Symbol()] = s
	}
	return p
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) DailyBars(ctx context.Context, symbol string, n int) (*models.PriceSeries, error) {
	p.mu.Lock()
	p.calls[symbol]++
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	s, ok := p.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: unknown symbol %s", models.ErrDataUnavailable, symbol)
	}
	return s.Tail(n), nil
}

func (p *fakeProvider) Calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

type fakePublisher struct {
	mu      sync.Mutex
	reports []*models.ForecastReport
	err     error
}

func (p *fakePublisher) PublishReport(_ context.Context, r *models.ForecastReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.reports = append(p.reports, r)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) Published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reports)
}

var errBoom = errors.New("boom")
