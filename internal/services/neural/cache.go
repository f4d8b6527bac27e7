package neural

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	"PriceCast/pkg/logger"
)

const (
	// DefaultTTL is how long a trained model stays fresh.
	DefaultTTL = 24 * time.Hour
	// DefaultTrainTimeout bounds a background training run.
	DefaultTrainTimeout = 10 * time.Minute
)

// CacheState is the lifecycle of one cache key.
type CacheState string

const (
	StateUntrained CacheState = "untrained"
	StateTraining  CacheState = "training"
	StateTrained   CacheState = "trained"
	StateStale     CacheState = "stale"
)

// Key identifies a model by instrument and input shape.
type Key struct {
	Instrument string
	Shape      string
}

func (k Key) String() string { return k.Instrument + "/" + k.Shape }

// ShapeKey builds the key of a lookBack x 1 model.
func ShapeKey(instrument string, lookBack int) Key {
	return Key{Instrument: instrument, Shape: fmt.Sprintf("%dx1", lookBack)}
}

// TrainStats summarize a training run.
type TrainStats struct {
	Epochs      int     `json:"epochs"`
	BestValLoss float64 `json:"best_val_loss"`
	FinalLoss   float64 `json:"final_loss"`
}

// Entry is a trained model held by the cache.
type Entry struct {
	Key       Key
	Model     service.SequenceModel
	TrainedAt time.Time
	Stats     TrainStats
}

// TrainFunc produces a fresh model.
type TrainFunc func(ctx context.Context) (*service.TrainResult, error)

// ModelCache owns trained models with TTL expiry. Concurrent requests for the
// same key share one training run.
type ModelCache struct {
	mu       sync.Mutex
	entries  map[Key]*Entry
	training map[Key]bool
	group    singleflight.Group

	ttl          time.Duration
	trainTimeout time.Duration
	now          func() time.Time
	metrics      repository.Metrics
	log          *logger.Logger
}

// CacheOption configures ModelCache.
type CacheOption func(*ModelCache)

// WithTTL sets the freshness window.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *ModelCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *ModelCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTrainTimeout bounds a training run independently of the caller.
func WithTrainTimeout(d time.Duration) CacheOption {
	return func(c *ModelCache) {
		if d > 0 {
			c.trainTimeout = d
		}
	}
}

// WithCacheMetrics records hit, miss and retrain events.
func WithCacheMetrics(m repository.Metrics) CacheOption {
	return func(c *ModelCache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *logger.Logger) CacheOption {
	return func(c *ModelCache) {
		if l != nil {
			c.log = l
		}
	}
}

// NewModelCache creates an empty cache.
func NewModelCache(opts ...CacheOption) *ModelCache {
	c := &ModelCache{
		entries:      make(map[Key]*Entry),
		training:     make(map[Key]bool),
		ttl:          DefaultTTL,
		trainTimeout: DefaultTrainTimeout,
		now:          time.Now,
		metrics:      repository.NopMetrics{},
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TrainTimeout bounds each detached training run.
func (c *ModelCache) TrainTimeout() time.Duration { return c.trainTimeout }

// Get returns the entry for key if it is still fresh.
func (c *ModelCache) Get(key Key) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freshLocked(key)
}

// State reports where key is in its lifecycle.
func (c *ModelCache) State(key Key) CacheState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.training[key] {
		return StateTraining
	}
	e, ok := c.entries[key]
	switch {
	case !ok:
		return StateUntrained
	case c.expiredLocked(e):
		return StateStale
	default:
		return StateTrained
	}
}

// GetOrTrain returns the fresh entry for key or trains one. Training runs
// detached from ctx, bounded by the cache's train timeout, so a caller that
// gives up still leaves a model for the next request.
func (c *ModelCache) GetOrTrain(ctx context.Context, key Key, train TrainFunc) (*Entry, error) {
	if e, ok := c.Get(key); ok {
		c.metrics.RecordModelCache("hit")
		return e, nil
	}
	c.metrics.RecordModelCache("miss")

	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		return c.train(context.WithoutCancel(ctx), key, train)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *ModelCache) train(ctx context.Context, key Key, train TrainFunc) (*Entry, error) {
	c.mu.Lock()
	if e, ok := c.freshLocked(key); ok {
		c.mu.Unlock()
		return e, nil
	}
	_, retrain := c.entries[key]
	c.training[key] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.training, key)
		c.mu.Unlock()
	}()

	if retrain {
		c.metrics.RecordModelCache("retrain")
	}
	ctx, cancel := context.WithTimeout(ctx, c.trainTimeout)
	defer cancel()

	start := c.now()
	res, err := train(ctx)
	if err != nil {
		c.metrics.RecordModelCache("train_error")
		c.log.Warn("model training failed", logger.String("key", key.String()), logger.Error(err))
		return nil, err
	}
	if res == nil || res.Model == nil {
		return nil, fmt.Errorf("training %s returned no model", key)
	}

	e := &Entry{
		Key:       key,
		Model:     res.Model,
		TrainedAt: c.now(),
		Stats: TrainStats{
			Epochs:      res.Epochs,
			BestValLoss: res.BestValLoss,
			FinalLoss:   res.FinalLoss,
		},
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()

	c.log.Info("model cached",
		logger.String("key", key.String()),
		logger.Int("epochs", res.Epochs),
		logger.Duration("duration_ms", e.TrainedAt.Sub(start)),
	)
	return e, nil
}

// Evict drops key.
func (c *ModelCache) Evict(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge drops every expired entry and returns how many were removed.
func (c *ModelCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if c.expiredLocked(e) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries, fresh or stale.
func (c *ModelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ModelCache) freshLocked(key Key) (*Entry, bool) {
	e, ok := c.entries[key]
	if !ok || c.expiredLocked(e) {
		return nil, false
	}
	return e, true
}

func (c *ModelCache) expiredLocked(e *Entry) bool {
	return c.now().Sub(e.TrainedAt) >= c.ttl
}
