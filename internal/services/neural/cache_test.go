package neural

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/service"
)

func trainWith(rt *stubRuntime) TrainFunc {
	return func(ctx context.Context) (*service.TrainResult, error) {
		return rt.Train(ctx, [][]float64{{1}}, []float64{1}, service.ModelSpec{})
	}
}

func TestCacheTTL(t *testing.T) {
	clock := newFakeClock()
	cache := NewModelCache(WithClock(clock.Now))
	rt := &stubRuntime{}
	key := ShapeKey("AAPL", 60)
	ctx := context.Background()

	assert.Equal(t, StateUntrained, cache.State(key))

	first, err := cache.GetOrTrain(ctx, key, trainWith(rt))
	require.NoError(t, err)
	assert.Equal(t, StateTrained, cache.State(key))

	clock.Advance(23 * time.Hour)
	second, err := cache.GetOrTrain(ctx, key, trainWith(rt))
	require.NoError(t, err)
	assert.Equal(t, first.TrainedAt, second.TrainedAt)
	assert.Equal(t, 1, rt.Calls())

	clock.Advance(time.Hour + time.Second)
	assert.Equal(t, StateStale, cache.State(key))
	_, ok := cache.Get(key)
	assert.False(t, ok)

	third, err := cache.GetOrTrain(ctx, key, trainWith(rt))
	require.NoError(t, err)
	assert.True(t, third.TrainedAt.After(first.TrainedAt))
	assert.Equal(t, 2, rt.Calls())
	assert.Equal(t, StateTrained, cache.State(key))
}

func TestCacheKeysAreIndependent(t *testing.T) {
	cache := NewModelCache()
	rt := &stubRuntime{}
	ctx := context.Background()

	_, err := cache.GetOrTrain(ctx, ShapeKey("AAPL", 60), trainWith(rt))
	require.NoError(t, err)
	_, err = cache.GetOrTrain(ctx, ShapeKey("AAPL", 30), trainWith(rt))
	require.NoError(t, err)
	_, err = cache.GetOrTrain(ctx, ShapeKey("MSFT", 60), trainWith(rt))
	require.NoError(t, err)
	assert.Equal(t, 3, rt.Calls())
	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, "AAPL/60x1", ShapeKey("AAPL", 60).String())
}

func TestCacheSharesInflightTraining(t *testing.T) {
	cache := NewModelCache()
	rt := &stubRuntime{release: make(chan struct{})}
	key := ShapeKey("TSLA", 60)

	var wg sync.WaitGroup
	entries := make([]*Entry, 8)
	for i := range entries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := cache.GetOrTrain(context.Background(), key, trainWith(rt))
			if assert.NoError(t, err) {
				entries[i] = e
			}
		}(i)
	}

	require.Eventually(t, func() bool { return cache.State(key) == StateTraining }, time.Second, time.Millisecond)
	// let every goroutine reach the flight before releasing it
	time.Sleep(20 * time.Millisecond)
	close(rt.release)
	wg.Wait()

	assert.Equal(t, 1, rt.Calls())
	for _, e := range entries {
		assert.Same(t, entries[0], e)
	}
}

func TestCacheCallerTimeoutKeepsTraining(t *testing.T) {
	cache := NewModelCache()
	rt := &stubRuntime{delay: 100 * time.Millisecond}
	key := ShapeKey("NVDA", 60)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := cache.GetOrTrain(ctx, key, trainWith(rt))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.Eventually(t, func() bool { return cache.State(key) == StateTrained }, 2*time.Second, 5*time.Millisecond)
	_, err = cache.GetOrTrain(context.Background(), key, trainWith(rt))
	require.NoError(t, err)
	assert.Equal(t, 1, rt.Calls())
}

func TestCacheTrainingErrorIsNotCached(t *testing.T) {
	cache := NewModelCache()
	rt := &stubRuntime{err: errors.New("diverged")}
	key := ShapeKey("AMD", 60)

	_, err := cache.GetOrTrain(context.Background(), key, trainWith(rt))
	require.Error(t, err)
	assert.Equal(t, StateUntrained, cache.State(key))

	rt.err = nil
	_, err = cache.GetOrTrain(context.Background(), key, trainWith(rt))
	require.NoError(t, err)
	assert.Equal(t, 2, rt.Calls())
}

func TestCachePurge(t *testing.T) {
	clock := newFakeClock()
	cache := NewModelCache(WithClock(clock.Now), WithTTL(time.Hour))
	rt := &stubRuntime{}
	_, err := cache.GetOrTrain(context.Background(), ShapeKey("A", 60), trainWith(rt))
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	_, err = cache.GetOrTrain(context.Background(), ShapeKey("B", 60), trainWith(rt))
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)
	assert.Equal(t, 1, cache.Purge())
	assert.Equal(t, 1, cache.Len())

	cache.Evict(ShapeKey("B", 60))
	assert.Equal(t, 0, cache.Len())
}
