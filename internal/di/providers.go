package di

import (
	"context"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/handler/api"
	internalrepo "PriceCast/internal/repository"
	"PriceCast/internal/service/cache"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/services/confidence"
	"PriceCast/internal/services/heuristic"
	"PriceCast/internal/services/indicators"
	"PriceCast/internal/services/neural"
	"PriceCast/internal/services/risk"
	"PriceCast/internal/services/trend"
	"PriceCast/internal/usecase"
	pkgch "PriceCast/pkg/clickhouse"
	"PriceCast/pkg/config"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
	"PriceCast/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client when ClickHouse serves market data.
// Returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.MarketData.Provider != config.ProviderClickHouse {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := internalrepo.NewCHBarStore(client, barTable(cfg))
	if err := client.InitSchema(ctx, store.Schema()); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse connected", applogger.String("table", barTable(cfg)))

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

func barTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
}

// ProvideMarketData selects the market-data provider named in config.
func ProvideMarketData(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.MarketDataProvider, error) {
	switch cfg.MarketData.Provider {
	case config.ProviderClickHouse:
		if ch == nil {
			return nil, fmt.Errorf("clickhouse provider selected without a client")
		}
		store := internalrepo.NewCHBarStore(ch, barTable(cfg))
		store.SetLogger(l)
		return store, nil
	case config.ProviderAlpaca:
		return internalrepo.NewAlpacaProvider(internalrepo.AlpacaConfig{
			APIKey:    cfg.Alpaca.APIKey,
			APISecret: cfg.Alpaca.APISecret,
			BaseURL:   cfg.Alpaca.BaseURL,
			Feed:      cfg.Alpaca.Feed,
		}, l), nil
	case config.ProviderCSV:
		p := internalrepo.NewCSVProvider(cfg.MarketData.CSVDir)
		for symbol, path := range cfg.MarketData.CSVFiles {
			p.WithFile(symbol, path)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", cfg.MarketData.Provider)
	}
}

// ProvideSequenceRuntime selects the sequence-model runtime named in config.
func ProvideSequenceRuntime(cfg *config.Config, l *applogger.Logger) service.SequenceModelRuntime {
	switch cfg.Neural.Runtime {
	case config.RuntimeNative:
		return neural.NewNativeRuntime(l)
	case config.RuntimeRemote:
		return neural.NewRemoteRuntime(cfg.Neural.Remote.URL, cfg.Neural.Remote.Timeout, neural.WithRemoteLogger(l))
	default:
		return neural.DisabledRuntime{}
	}
}

// ProvideModelCache creates the trained-model cache.
func ProvideModelCache(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *neural.ModelCache {
	return neural.NewModelCache(
		neural.WithTTL(cfg.Neural.CacheTTL),
		neural.WithTrainTimeout(cfg.Neural.TrainTimeout),
		neural.WithCacheMetrics(m),
		neural.WithCacheLogger(l),
	)
}

// ProvidePredictor creates the neural sequence predictor.
func ProvidePredictor(
	cfg *config.Config,
	rt service.SequenceModelRuntime,
	mc *neural.ModelCache,
	m repository.Metrics,
	l *applogger.Logger,
) *neural.Predictor {
	return neural.NewPredictor(rt, mc,
		neural.WithSpec(modelSpec(cfg)),
		neural.WithMinPoints(cfg.Neural.MinPoints),
		neural.WithPredictorMetrics(m),
		neural.WithPredictorLogger(l),
	)
}

func modelSpec(cfg *config.Config) service.ModelSpec {
	spec := neural.DefaultSpec()
	spec.LookBack = cfg.Neural.LookBack
	spec.Epochs = cfg.Neural.Epochs
	spec.BatchSize = cfg.Neural.BatchSize
	spec.Patience = cfg.Neural.Patience
	spec.LearningRate = cfg.Neural.LearningRate
	spec.ValidationSplit = cfg.Neural.ValidationSplit
	spec.Dropout = cfg.Neural.Dropout
	spec.Seed = cfg.Forecast.Seed
	return spec
}

// ProvideOrchestrator wires the forecasting services.
func ProvideOrchestrator(
	cfg *config.Config,
	p *neural.Predictor,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ForecastOrchestrator {
	hopts := []heuristic.Option{heuristic.WithLogger(l)}
	if cfg.Forecast.Seed != 0 {
		hopts = append(hopts, heuristic.WithSeed(cfg.Forecast.Seed))
	}
	opts := []usecase.OrchestratorOption{
		usecase.WithNeuralTimeout(cfg.Forecast.NeuralTimeout),
		usecase.WithNeuralThreshold(cfg.Forecast.NeuralConfidenceThreshold),
		usecase.WithMinConfidence(models.ConfidenceScores{
			ShortTerm:  cfg.Forecast.MinConfidence.Short,
			MediumTerm: cfg.Forecast.MinConfidence.Medium,
			LongTerm:   cfg.Forecast.MinConfidence.Long,
		}),
		usecase.WithOrchestratorMetrics(m),
		usecase.WithOrchestratorLogger(l),
	}
	if cfg.Neural.Runtime != config.RuntimeDisabled {
		opts = append(opts, usecase.WithNeural(p))
	}
	return usecase.NewForecastOrchestrator(
		indicators.NewEngine(indicators.WithLogger(l)),
		trend.NewScorer(),
		risk.NewCalculator(risk.WithRiskFreeRate(cfg.Forecast.RiskFreeRate)),
		heuristic.NewForecaster(hopts...),
		confidence.NewEstimator(),
		opts...,
	)
}

// ProvideReportCache uses Redis when enabled and an in-process TTL cache otherwise.
func ProvideReportCache(cfg *config.Config, l *applogger.Logger) (cache.BytesCache, func(), error) {
	if !cfg.Redis.Enabled {
		return cache.NewTTLCache(), func() {}, nil
	}
	rc := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}, nil
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled. Returns nil otherwise.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}, nil
}

// ProvideReportPublisher publishes reports to Kafka when a producer exists.
func ProvideReportPublisher(cfg *config.Config, producer *pkgkafka.Producer, m repository.Metrics) repository.ReportPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.ReportTopic, m)
}

// ProvideForecastUseCase creates the forecast use case.
func ProvideForecastUseCase(
	cfg *config.Config,
	provider repository.MarketDataProvider,
	orch *usecase.ForecastOrchestrator,
	rc cache.BytesCache,
	pub repository.ReportPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(provider, orch,
		usecase.WithReportCache(rc, cfg.API.ReportCacheTTL),
		usecase.WithPublisher(pub),
		usecase.WithBenchmark(cfg.MarketData.BenchmarkSymbol),
		usecase.WithHistoryBars(cfg.MarketData.HistoryBars),
		usecase.WithRunTimeout(cfg.Forecast.RunTimeout),
		usecase.WithUseCaseMetrics(m),
		usecase.WithUseCaseLogger(l),
	)
}

// ProvideRateLimiter creates the per-client API limiter and sweeps idle clients.
func ProvideRateLimiter(cfg *config.Config) (*ratelimit.Limiter, func()) {
	rl := ratelimit.New(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst)
	ctx, cancel := context.WithCancel(context.Background())
	go rl.SweepEvery(ctx, time.Minute)
	return rl, cancel
}

// ProvideHTTPHandler creates the echo handler with health checks for the configured backends.
func ProvideHTTPHandler(
	l *applogger.Logger,
	uc *usecase.ForecastUseCase,
	rl *ratelimit.Limiter,
	ch *pkgch.Client,
	rc cache.BytesCache,
) *api.ForecastEchoHandler {
	opts := []api.HandlerOption{api.WithRateLimiter(rl)}
	if ch != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", ch.Health))
	}
	if redis, ok := rc.(*cache.RedisCache); ok {
		opts = append(opts, api.WithHealthCheck("redis", redis.Ping))
	}
	return api.NewForecastEchoHandler(l, uc, opts...)
}

// ProvideKafkaConsumer creates a Kafka consumer when Kafka is enabled. Returns nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaRequestHandler serves forecast requests from the request topic.
func ProvideKafkaRequestHandler(
	cfg *config.Config,
	uc *usecase.ForecastUseCase,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.KafkaRequestHandler {
	return usecase.NewKafkaRequestHandler(cfg.Kafka.RequestTopic, uc, m, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.ForecastEchoHandler,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaRequestHandler,
) *server.App {
	if consumer == nil {
		return server.New(cfg, l, h, nil, nil)
	}
	return server.New(cfg, l, h, consumer, kh)
}
