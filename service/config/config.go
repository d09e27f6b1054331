package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	LedgerTON    = "ton"
	LedgerSolana = "solana"

	SchedulerTicker   = "ticker"
	SchedulerTemporal = "temporal"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Watched account
	AccountAddress string
	Ledger         string

	// Ledger endpoints
	ToncenterURL    string
	ToncenterAPIKey string
	SolanaRPCURL    string

	// Polling configuration
	PollInterval time.Duration
	PageSize     int
	MaxRetries   int
	RetryDelay   time.Duration
	Scheduler    string

	// Sinks
	SinkBuffer  int
	DatabaseURL string
	NATSURL     string
	RedisURL    string
	RedisStream string

	// Server configuration
	ServerAddr  string
	MetricsAddr string
	LogLevel    string
	LogFormat   string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAPI is like Load but only validates what the API server needs.
// The API server does not poll, so ACCOUNT_ADDRESS and the ledger settings are optional.
func LoadAPI() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateAPI(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.AccountAddress = os.Getenv("ACCOUNT_ADDRESS")
	cfg.Ledger = getEnvOrDefault("LEDGER", LedgerTON)
	cfg.ToncenterURL = getEnvOrDefault("TONCENTER_URL", "https://toncenter.com/api/v2")
	cfg.ToncenterAPIKey = os.Getenv("TONCENTER_API_KEY")
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")

	pollInterval, err := parseDuration("POLL_INTERVAL", "10s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.PollInterval = pollInterval

	pageSize, err := parseInt("PAGE_SIZE", 10)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.PageSize = pageSize

	maxRetries, err := parseInt("MAX_RETRIES", 5)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.MaxRetries = maxRetries

	retryDelay, err := parseDuration("RETRY_DELAY", "1s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.RetryDelay = retryDelay

	cfg.Scheduler = getEnvOrDefault("SCHEDULER", SchedulerTicker)

	sinkBuffer, err := parseInt("SINK_BUFFER", 256)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.SinkBuffer = sinkBuffer

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.RedisStream = getEnvOrDefault("REDIS_STREAM", "tonwatch:transactions")

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", "json")

	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "tonwatch-sync")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.AccountAddress == "" {
		errs = append(errs, fmt.Errorf("ACCOUNT_ADDRESS is required"))
	}

	switch c.Ledger {
	case LedgerTON:
		if c.ToncenterURL == "" {
			errs = append(errs, fmt.Errorf("TONCENTER_URL is required"))
		}
	case LedgerSolana:
		if c.SolanaRPCURL == "" {
			errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required when LEDGER=solana"))
		}
	default:
		errs = append(errs, fmt.Errorf("LEDGER must be %q or %q, got %q", LedgerTON, LedgerSolana, c.Ledger))
	}

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be at least 1 second, got %v", c.PollInterval))
	}
	if c.PageSize < 2 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be at least 2, got %d", c.PageSize))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES cannot be negative, got %d", c.MaxRetries))
	}
	if c.RetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("RETRY_DELAY must be positive, got %v", c.RetryDelay))
	}
	if c.SinkBuffer < 1 {
		errs = append(errs, fmt.Errorf("SINK_BUFFER must be at least 1, got %d", c.SinkBuffer))
	}

	switch c.Scheduler {
	case SchedulerTicker:
	case SchedulerTemporal:
		if c.TemporalHost == "" {
			errs = append(errs, fmt.Errorf("TEMPORAL_HOST is required when SCHEDULER=temporal"))
		}
		if c.TemporalNamespace == "" {
			errs = append(errs, fmt.Errorf("TEMPORAL_NAMESPACE is required when SCHEDULER=temporal"))
		}
		if c.TemporalTaskQueue == "" {
			errs = append(errs, fmt.Errorf("TEMPORAL_TASK_QUEUE is required when SCHEDULER=temporal"))
		}
	default:
		errs = append(errs, fmt.Errorf("SCHEDULER must be %q or %q, got %q", SchedulerTicker, SchedulerTemporal, c.Scheduler))
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// ValidateAPI checks the subset of the configuration used by the API server.
func (c *Config) ValidateAPI() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}
	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("SERVER_ADDR is required"))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
