package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		RateLimit       struct {
			Requests int           `yaml:"requests" default:"60"`
			Window   time.Duration `yaml:"window" default:"1m"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Forecast struct {
		Variant         string        `yaml:"variant" default:"windowed"`
		LookBack        int           `yaml:"look_back" default:"10"`
		Horizon         int           `yaml:"horizon" default:"4"`
		MaxHorizon      int           `yaml:"max_horizon" default:"30"`
		HistoryDays     int           `yaml:"history_days" default:"180"`
		HistoryWindow   int           `yaml:"history_window" default:"30"`
		DisplayAccuracy float64       `yaml:"display_accuracy" default:"97.5"`
		CacheTTL        time.Duration `yaml:"cache_ttl" default:"10m"`
	} `yaml:"forecast"`
	Training struct {
		Symbols      []string      `yaml:"symbols"`
		PeriodDays   int           `yaml:"period_days" default:"365"`
		TestFraction float64       `yaml:"test_fraction" default:"0.2"`
		Seed         int64         `yaml:"seed" default:"42"`
		Timeout      time.Duration `yaml:"timeout" default:"15m"`
		RetryBackoff time.Duration `yaml:"retry_backoff" default:"5m"`
		Residual     string        `yaml:"residual" default:"windowed"`
		Forest       struct {
			Trees          int `yaml:"trees" default:"200"`
			MaxDepth       int `yaml:"max_depth" default:"20"`
			MinSamplesLeaf int `yaml:"min_samples_leaf" default:"1"`
			MaxFeatures    int `yaml:"max_features"`
		} `yaml:"forest"`
		Sequence struct {
			Reservoir      int     `yaml:"reservoir" default:"64"`
			SpectralRadius float64 `yaml:"spectral_radius" default:"0.9"`
			InputScale     float64 `yaml:"input_scale" default:"1"`
			Density        float64 `yaml:"density" default:"0.2"`
			Leak           float64 `yaml:"leak" default:"1"`
			Ridge          float64 `yaml:"ridge" default:"0.000001"`
		} `yaml:"sequence"`
	} `yaml:"training"`
	Artifacts struct {
		Backend string `yaml:"backend" default:"file"`
		Key     string `yaml:"key" default:"general-forecaster"`
		Dir     string `yaml:"dir" default:"./models"`
		S3      struct {
			Bucket string `yaml:"bucket"`
			Prefix string `yaml:"prefix" default:"models/"`
			Region string `yaml:"region"`
		} `yaml:"s3"`
	} `yaml:"artifacts"`
	Source struct {
		Type  string `yaml:"type" default:"yahoo"`
		Yahoo struct {
			BaseURL   string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
			Timeout   time.Duration `yaml:"timeout" default:"10s"`
			UserAgent string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; PriceCast/1.0)"`
			Retries   int           `yaml:"retries" default:"2"`
		} `yaml:"yahoo"`
	} `yaml:"source"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"pricecast"`
		Table            string        `yaml:"table" default:"daily_closes"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"pricecast"`
		Pool     struct {
			Size        int           `yaml:"size" default:"10"`
			MinIdle     int           `yaml:"min_idle" default:"2"`
			WaitTimeout time.Duration `yaml:"wait_timeout" default:"30s"`
		} `yaml:"pool"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			Topic        string        `yaml:"topic" default:"pricecast.forecasts"`
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Topic      string        `yaml:"topic" default:"pricecast.retrain"`
			GroupID    string        `yaml:"group_id" default:"pricecast"`
			Workers    int           `yaml:"workers" default:"2"`
			DLQTopic   string        `yaml:"dlq_topic"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

// DefaultTrainingSymbols is the corpus used when training.symbols is empty.
var DefaultTrainingSymbols = []string{
	"RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "INFY.NS", "ICICIBANK.NS",
	"HINDUNILVR.NS", "SBIN.NS", "BHARTIARTL.NS", "KOTAKBANK.NS", "LT.NS",
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	c.fillCorpus()
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.fillCorpus()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
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

func (c *Config) fillCorpus() {
	if len(c.Training.Symbols) == 0 {
		c.Training.Symbols = append([]string(nil), DefaultTrainingSymbols...)
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PRICECAST_VARIANT"); v != "" {
		c.Forecast.Variant = v
	}
	if v := getenv("PRICECAST_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PRICECAST_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("TRAINING_SYMBOLS"); v != "" {
		c.Training.Symbols = splitList(v)
	}
	if v := getenv("ARTIFACT_BACKEND"); v != "" {
		c.Artifacts.Backend = v
	}
	if v := getenv("ARTIFACT_S3_BUCKET"); v != "" {
		c.Artifacts.S3.Bucket = v
	}
	if v := getenv("PRICE_SOURCE"); v != "" {
		c.Source.Type = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Forecast.Variant {
	case "linear", "windowed", "sequence", "hybrid":
	default:
		return fmt.Errorf("forecast.variant must be one of linear, windowed, sequence, hybrid, got '%s'", c.Forecast.Variant)
	}
	if c.Forecast.LookBack < 1 {
		return fmt.Errorf("forecast.look_back must be positive, got %d", c.Forecast.LookBack)
	}
	if c.Forecast.MaxHorizon < 1 || c.Forecast.Horizon < 1 || c.Forecast.Horizon > c.Forecast.MaxHorizon {
		return fmt.Errorf("forecast.horizon must be within [1, %d], got %d", c.Forecast.MaxHorizon, c.Forecast.Horizon)
	}
	if c.Forecast.HistoryDays <= c.Forecast.LookBack {
		return fmt.Errorf("forecast.history_days (%d) must exceed look_back (%d)", c.Forecast.HistoryDays, c.Forecast.LookBack)
	}
	if c.Forecast.DisplayAccuracy < 90 || c.Forecast.DisplayAccuracy > 100 {
		return fmt.Errorf("forecast.display_accuracy must be within [90, 100], got %g", c.Forecast.DisplayAccuracy)
	}
	if len(c.Training.Symbols) == 0 {
		return fmt.Errorf("training.symbols cannot be empty")
	}
	if c.Training.TestFraction < 0 || c.Training.TestFraction >= 1 {
		return fmt.Errorf("training.test_fraction must be within [0, 1), got %g", c.Training.TestFraction)
	}
	switch c.Artifacts.Backend {
	case "file":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("artifacts.backend 'redis' requires redis.enabled")
		}
	case "s3":
		if c.Artifacts.S3.Bucket == "" {
			return fmt.Errorf("artifacts.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("artifacts.backend must be 'file', 'redis' or 's3', got '%s'", c.Artifacts.Backend)
	}
	if c.Source.Type != "yahoo" && c.Source.Type != "clickhouse" {
		return fmt.Errorf("source.type must be 'yahoo' or 'clickhouse', got '%s'", c.Source.Type)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
