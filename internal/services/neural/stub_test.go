package neural

import (
	"context"
	"sync"
	"time"

	"PriceCast/internal/domain/service"
)

// stubRuntime counts training runs and returns a model that repeats the last
// value of its window, optionally shifted by drift.
type stubRuntime struct {
	mu        sync.Mutex
	calls     int
	err       error
	delay     time.Duration
	release   chan struct{}
	drift     float64
	unusable  bool
	lastSpec  service.ModelSpec
	lastTrain int
}

func (s *stubRuntime) Name() string { return "stub" }

func (s *stubRuntime) Available() bool { return !s.unusable }

func (s *stubRuntime) Train(ctx context.Context, x [][]float64, y []float64, spec service.ModelSpec) (*service.TrainResult, error) {
	s.mu.Lock()
	s.calls++
	s.lastSpec = spec
	s.lastTrain = len(x)
	s.mu.Unlock()

	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &service.TrainResult{Model: persistence{drift: s.drift}, Epochs: 1}, nil
}

func (s *stubRuntime) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type persistence struct{ drift float64 }

func (p persistence) Predict(_ context.Context, window []float64) (float64, error) {
	return window[len(window)-1] + p.drift, nil
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
