package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "DATABASE_URL", "STORE", "REDIS_ADDR", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"HOLD_TTL", "SWEEP_INTERVAL", "SWEEP_BATCH_SIZE", "PRODUCT_CACHE_TTL",
	"SETTLEMENT_MAX_ATTEMPTS", "LOCK_TIMEOUT", "CORS_ORIGINS",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "LOG_LEVEL",
}

// isolate clears every setting and moves into an empty directory so no .env
// file from the repository leaks in.
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "stock-events", cfg.KafkaTopic)
	assert.Equal(t, 2*time.Minute, cfg.HoldTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 500, cfg.SweepBatchSize)
	assert.Equal(t, 5*time.Second, cfg.ProductCacheTTL)
	assert.Equal(t, 3, cfg.SettlementMaxAttempts)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestLoad_Overrides(t *testing.T) {
	isolate(t)
	t.Setenv("STORE", "MEMORY")
	t.Setenv("HOLD_TTL", "30s")
	t.Setenv("SWEEP_BATCH_SIZE", "0")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CORS_ORIGINS", "https://shop.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 30*time.Second, cfg.HoldTTL)
	assert.Equal(t, 0, cfg.SweepBatchSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://shop.example"}, cfg.CORSOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"HOLD_TTL":                "soon",
		"SWEEP_INTERVAL":          "-1m",
		"SWEEP_BATCH_SIZE":        "many",
		"SETTLEMENT_MAX_ATTEMPTS": "0",
		"STORE":                   "sqlite",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			isolate(t)
			t.Setenv(key, value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_EnvFileInParentDirectory(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	content := "\ufeff# comment\nexport PORT=9090\nKAFKA_TOPIC='events'\nHOLD_TTL=\"45s\"\nbroken line\n"
	require.NoError(t, os.WriteFile(root+"/.env", []byte(content), 0o600))
	nested := root + "/a/b"
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)
	os.Unsetenv("PORT")
	os.Unsetenv("KAFKA_TOPIC")
	os.Unsetenv("HOLD_TTL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "events", cfg.KafkaTopic)
	assert.Equal(t, 45*time.Second, cfg.HoldTTL)
}

func TestParseEnvFile_ExistingVariablesWin(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	warnings, err := parseEnvFile(strings.NewReader("LOG_LEVEL=error\n"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "debug", os.Getenv("LOG_LEVEL"))
}

func TestParseCSV(t *testing.T) {
	assert.Nil(t, ParseCSV(""))
	assert.Equal(t, []string{"a", "b"}, ParseCSV(" a ,, b "))
}
