package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Market data providers.
const (
	ProviderClickHouse = "clickhouse"
	ProviderAlpaca     = "alpaca"
	ProviderCSV        = "csv"
)

// Sequence model runtimes.
const (
	RuntimeNative   = "native"
	RuntimeRemote   = "remote"
	RuntimeDisabled = "disabled"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	MarketData struct {
		Provider        string            `yaml:"provider" default:"clickhouse" validate:"oneof=clickhouse alpaca csv"`
		HistoryBars     int               `yaml:"history_bars" default:"500" validate:"gte=20"`
		BenchmarkSymbol string            `yaml:"benchmark_symbol" default:"SPY"`
		CSVDir          string            `yaml:"csv_dir" default:"./data"`
		CSVFiles        map[string]string `yaml:"csv_files"`
	} `yaml:"market_data"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"pricecast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"daily_bars"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Alpaca struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		BaseURL   string `yaml:"base_url"`
		Feed      string `yaml:"feed" default:"iex" validate:"oneof=iex sip otc"`
	} `yaml:"alpaca"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		ReportTopic  string   `yaml:"report_topic" default:"forecast.reports"`
		RequestTopic string   `yaml:"request_topic" default:"forecast.requests"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"pricecast"`
			Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"forecast.requests.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	API struct {
		RateLimitRPS   float64       `yaml:"rate_limit_rps" default:"5" validate:"gt=0"`
		RateLimitBurst int           `yaml:"rate_limit_burst" default:"10" validate:"gte=1"`
		ReportCacheTTL time.Duration `yaml:"report_cache_ttl" default:"5m"`
	} `yaml:"api"`
	Forecast struct {
		RiskFreeRate              float64       `yaml:"risk_free_rate" default:"0.03" validate:"gte=0,lt=1"`
		NeuralConfidenceThreshold float64       `yaml:"neural_confidence_threshold" default:"20" validate:"gte=0,lte=100"`
		NeuralTimeout             time.Duration `yaml:"neural_timeout" default:"2m"`
		RunTimeout                time.Duration `yaml:"run_timeout" default:"3m"`
		MinConfidence             struct {
			Short  float64 `yaml:"short" default:"70" validate:"gte=0,lte=100"`
			Medium float64 `yaml:"medium" default:"60" validate:"gte=0,lte=100"`
			Long   float64 `yaml:"long" default:"50" validate:"gte=0,lte=100"`
		} `yaml:"min_confidence"`
		Seed int64 `yaml:"seed"`
	} `yaml:"forecast"`
	Neural struct {
		Runtime         string        `yaml:"runtime" default:"native" validate:"oneof=native remote disabled"`
		LookBack        int           `yaml:"look_back" default:"60" validate:"gte=2"`
		CacheTTL        time.Duration `yaml:"cache_ttl" default:"24h"`
		TrainTimeout    time.Duration `yaml:"train_timeout" default:"10m"`
		MinPoints       int           `yaml:"min_points" default:"200"`
		Epochs          int           `yaml:"epochs" default:"50" validate:"gte=1"`
		BatchSize       int           `yaml:"batch_size" default:"32" validate:"gte=1"`
		Patience        int           `yaml:"patience" default:"10" validate:"gte=1"`
		LearningRate    float64       `yaml:"learning_rate" default:"0.001" validate:"gt=0"`
		ValidationSplit float64       `yaml:"validation_split" default:"0.2" validate:"gte=0,lt=1"`
		Dropout         float64       `yaml:"dropout" default:"0.2" validate:"gte=0,lt=1"`
		Remote          struct {
			URL     string        `yaml:"url"`
			Timeout time.Duration `yaml:"timeout" default:"90s"`
		} `yaml:"remote"`
	} `yaml:"neural"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadOrDefault loads path when set and starts from the defaults otherwise.
// Environment overrides apply in both cases.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return LoadWithEnv(path)
	}
	c := Default()
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PRICECAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("PRICECAST_PROVIDER"); v != "" {
		c.MarketData.Provider = v
	}
	if v := getenv("PRICECAST_NEURAL_RUNTIME"); v != "" {
		c.Neural.Runtime = v
	}
	if v := getenv("PRICECAST_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PRICECAST_SEED: %w", err)
		}
		c.Forecast.Seed = seed
	}
	if v := getenv("ALPACA_API_KEY"); v != "" {
		c.Alpaca.APIKey = v
	}
	if v := getenv("ALPACA_API_SECRET"); v != "" {
		c.Alpaca.APISecret = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	return nil
}

// Validate checks struct tags and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.MarketData.Provider {
	case ProviderAlpaca:
		if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
			return fmt.Errorf("alpaca.api_key and alpaca.api_secret are required for the alpaca provider")
		}
	case ProviderClickHouse:
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for the clickhouse provider")
		}
	case ProviderCSV:
		if c.MarketData.CSVDir == "" {
			return fmt.Errorf("market_data.csv_dir is required for the csv provider")
		}
	}
	if c.Neural.Runtime == RuntimeRemote && c.Neural.Remote.URL == "" {
		return fmt.Errorf("neural.remote.url is required for the remote runtime")
	}
	if c.Neural.MinPoints <= c.Neural.LookBack {
		return fmt.Errorf("neural.min_points (%d) must exceed neural.look_back (%d)", c.Neural.MinPoints, c.Neural.LookBack)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
