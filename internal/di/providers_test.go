package di

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"PriceCast/internal/domain/repository"
	"PriceCast/internal/services/neural"
	"PriceCast/pkg/config"
	applogger "PriceCast/pkg/logger"
)

func TestProvideModelCacheUsesTrainTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Neural.TrainTimeout = 90 * time.Second

	mc := ProvideModelCache(cfg, repository.NopMetrics{}, applogger.Nop())
	assert.Equal(t, 90*time.Second, mc.TrainTimeout())
}

func TestProvideModelCacheDefaultTrainTimeout(t *testing.T) {
	mc := ProvideModelCache(config.Default(), repository.NopMetrics{}, applogger.Nop())
	assert.Equal(t, neural.DefaultTrainTimeout, mc.TrainTimeout())
}

func TestProvideSequenceRuntimeDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Neural.Runtime = config.RuntimeDisabled

	rt := ProvideSequenceRuntime(cfg, applogger.Nop())
	assert.False(t, rt.Available())
}
