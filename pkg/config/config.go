package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		TicksTopic   string   `yaml:"ticks_topic"`
		SignalsTopic string   `yaml:"signals_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Consumer     struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Stream struct {
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"stream"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
		DedupeTTL  time.Duration `yaml:"dedupe_ttl"`
	} `yaml:"queue"`
	Scheduler struct {
		Cadence       time.Duration `yaml:"cadence"`
		LeaseTTL      time.Duration `yaml:"lease_ttl"`
		BatchClass    string        `yaml:"batch_class"`
		RealtimeClass string        `yaml:"realtime_class"`
	} `yaml:"scheduler"`
	Pipeline struct {
		PolicyID       string        `yaml:"policy_id"`
		BackfillWindow time.Duration `yaml:"backfill_window"`
		JobTimeout     time.Duration `yaml:"job_timeout"`
		FetchRPS       float64       `yaml:"fetch_rps"`
	} `yaml:"pipeline"`
	Strategy struct {
		Policies []PolicyConfig `yaml:"policies"`
		// thresholds and instruments live alongside policies so the whole
		// strategy surface is validated in one pass at startup
		Thresholds  []ThresholdConfig  `yaml:"thresholds"`
		Instruments []InstrumentConfig `yaml:"instruments"`
	} `yaml:"strategy"`
}

// PolicyConfig mirrors strategy.PolicySpec at the YAML boundary.
type PolicyConfig struct {
	ID             string             `yaml:"id"`
	Components     []string           `yaml:"components"`
	Weights        map[string]float64 `yaml:"weights"`
	ConsensusMin   int                `yaml:"consensus_min"`
	RequireSync    bool               `yaml:"require_sync"`
	SyncTimeframes []string           `yaml:"sync_timeframes"`
	Params         map[string]float64 `yaml:"params"`
}

type ThresholdConfig struct {
	Symbol     string  `yaml:"symbol"`
	TF         string  `yaml:"tf"`
	FastLine   float64 `yaml:"fast_line"`
	SignalLine float64 `yaml:"signal_line"`
}

type InstrumentConfig struct {
	Ticker string `yaml:"ticker"`
	Venue  string `yaml:"venue"`
	Active bool   `yaml:"active"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
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

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.DedupeTTL <= 0 {
		c.Queue.DedupeTTL = 5 * time.Minute
	}
	if c.Scheduler.Cadence <= 0 {
		c.Scheduler.Cadence = 60 * time.Second
	}
	if c.Scheduler.LeaseTTL <= 0 {
		c.Scheduler.LeaseTTL = 10 * time.Minute
	}
	if c.Scheduler.BatchClass == "" {
		c.Scheduler.BatchClass = "mtf-batch"
	}
	if c.Scheduler.RealtimeClass == "" {
		c.Scheduler.RealtimeClass = "tick-workers"
	}
	if c.Pipeline.BackfillWindow <= 0 {
		c.Pipeline.BackfillWindow = 365 * 24 * time.Hour
	}
	if c.Pipeline.JobTimeout <= 0 {
		c.Pipeline.JobTimeout = 5 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if len(c.Strategy.Policies) == 0 {
		return fmt.Errorf("strategy.policies cannot be empty")
	}
	if len(c.Strategy.Instruments) == 0 {
		return fmt.Errorf("strategy.instruments cannot be empty")
	}
	if c.Pipeline.PolicyID == "" {
		return fmt.Errorf("pipeline.policy_id is required")
	}
	if c.Pipeline.BackfillWindow > 366*24*time.Hour {
		return fmt.Errorf("pipeline.backfill_window must be at most one year")
	}
	return nil
}
