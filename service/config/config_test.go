package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "EQDtFpEwcFAEcRe5mLVh2N6C0x-_hJEM7W61_JLnSF74p4q2"

func setRequiredEnv() {
	os.Setenv("ACCOUNT_ADDRESS", testAccount)
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
}

func TestLoad_ValidConfig(t *testing.T) {
	cleanupEnv()
	setRequiredEnv()
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, testAccount, cfg.AccountAddress)
	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, LedgerTON, cfg.Ledger)
	assert.Equal(t, "https://toncenter.com/api/v2", cfg.ToncenterURL)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, 256, cfg.SinkBuffer)
	assert.Equal(t, SchedulerTicker, cfg.Scheduler)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "tonwatch:transactions", cfg.RedisStream)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "tonwatch-sync", cfg.TemporalTaskQueue)
}

func TestLoad_MissingRequired(t *testing.T) {
	cleanupEnv()
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "ACCOUNT_ADDRESS is required")
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoad_SolanaRequiresRPCURL(t *testing.T) {
	cleanupEnv()
	setRequiredEnv()
	os.Setenv("LEDGER", "solana")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLANA_RPC_URL is required")

	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, LedgerSolana, cfg.Ledger)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad duration", "POLL_INTERVAL", "soon", "invalid duration"},
		{"interval too short", "POLL_INTERVAL", "500ms", "must be at least 1 second"},
		{"bad page size", "PAGE_SIZE", "ten", "invalid integer"},
		{"page size too small", "PAGE_SIZE", "1", "PAGE_SIZE must be at least 2"},
		{"negative retries", "MAX_RETRIES", "-1", "cannot be negative"},
		{"zero retry delay", "RETRY_DELAY", "0s", "RETRY_DELAY must be positive"},
		{"unknown ledger", "LEDGER", "btc", "LEDGER must be"},
		{"unknown scheduler", "SCHEDULER", "cron", "SCHEDULER must be"},
		{"unknown log format", "LOG_FORMAT", "xml", "LOG_FORMAT must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanupEnv()
			setRequiredEnv()
			os.Setenv(tt.key, tt.val)
			defer cleanupEnv()

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_CustomValues(t *testing.T) {
	cleanupEnv()
	setRequiredEnv()
	os.Setenv("TONCENTER_API_KEY", "secret-key")
	os.Setenv("POLL_INTERVAL", "30s")
	os.Setenv("PAGE_SIZE", "50")
	os.Setenv("MAX_RETRIES", "0")
	os.Setenv("SCHEDULER", "temporal")
	os.Setenv("REDIS_URL", "redis://localhost:6379/0")
	os.Setenv("LOG_FORMAT", "text")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret-key", cfg.ToncenterAPIKey)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, SchedulerTemporal, cfg.Scheduler)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "text", cfg.LogFormat)
}

func validConfig() *Config {
	return &Config{
		AccountAddress:    testAccount,
		Ledger:            LedgerTON,
		ToncenterURL:      "https://toncenter.com/api/v2",
		DatabaseURL:       "postgres://localhost/test",
		PollInterval:      10 * time.Second,
		PageSize:          10,
		MaxRetries:        5,
		RetryDelay:        time.Second,
		SinkBuffer:        256,
		Scheduler:         SchedulerTicker,
		LogFormat:         "json",
		TemporalHost:      "localhost:7233",
		TemporalNamespace: "default",
		TemporalTaskQueue: "tonwatch-sync",
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_TemporalRequiresHost(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler = SchedulerTemporal
	cfg.TemporalHost = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEMPORAL_HOST is required")
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.AccountAddress = ""
	cfg.PageSize = 0
	cfg.SinkBuffer = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCOUNT_ADDRESS")
	assert.Contains(t, err.Error(), "PAGE_SIZE")
	assert.Contains(t, err.Error(), "SINK_BUFFER")
}

func TestMustLoad_Panics(t *testing.T) {
	// Don't set required env vars
	cleanupEnv()
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	cleanupEnv()
	setRequiredEnv()
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"ACCOUNT_ADDRESS", "LEDGER", "TONCENTER_URL", "TONCENTER_API_KEY", "SOLANA_RPC_URL",
		"POLL_INTERVAL", "PAGE_SIZE", "MAX_RETRIES", "RETRY_DELAY", "SINK_BUFFER", "SCHEDULER",
		"DATABASE_URL", "NATS_URL", "REDIS_URL", "REDIS_STREAM",
		"SERVER_ADDR", "METRICS_ADDR", "LOG_LEVEL", "LOG_FORMAT",
		"TEMPORAL_HOST", "TEMPORAL_NAMESPACE", "TEMPORAL_TASK_QUEUE",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadAPI_AccountOptional(t *testing.T) {
	cleanupEnv()
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	defer cleanupEnv()

	cfg, err := LoadAPI()
	require.NoError(t, err)
	assert.Empty(t, cfg.AccountAddress)
	assert.Equal(t, ":8080", cfg.ServerAddr)

	os.Unsetenv("DATABASE_URL")
	_, err = LoadAPI()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}
