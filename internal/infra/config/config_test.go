package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, LockMemory, cfg.LockDriver)
	assert.Equal(t, BrokerNone, cfg.EventsBroker)
	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.12")))
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 48*time.Hour, cfg.FreeCancellationWindow)
	assert.Equal(t, 100, cfg.LateCancellationPenalty)
	assert.Equal(t, 8, cfg.ReferenceLength)
	assert.Equal(t, 5, cfg.ReferenceMaxAttempts)
	assert.True(t, cfg.SettleOnRead)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("SQL_DSN", "host=db user=app")
	t.Setenv("EVENTS_BROKER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TAX_RATE", "0.2")
	t.Setenv("LATE_CANCELLATION_PENALTY", "50")
	t.Setenv("SETTLE_ON_READ", "off")
	t.Setenv("RETRY_BACKOFF", "2s, ,10s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, 50, cfg.LateCancellationPenalty)
	assert.False(t, cfg.SettleOnRead)
	assert.Equal(t, []time.Duration{2 * time.Second, 10 * time.Second}, cfg.RetryBackoff)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"mongo without uri":  {"STORE_DRIVER": "mongo"},
		"sql without dsn":    {"STORE_DRIVER": "sqlite"},
		"unknown store":      {"STORE_DRIVER": "cassandra"},
		"unknown lock":       {"LOCK_DRIVER": "zookeeper"},
		"kafka w/o brokers":  {"EVENTS_BROKER": "kafka"},
		"bad duration":       {"LOCK_TTL": "ten"},
		"bad bool":           {"SETTLE_ON_READ": "maybe"},
		"bad tax":            {"TAX_RATE": "twelve"},
		"negative tax":       {"TAX_RATE": "-0.1"},
		"penalty over 100":   {"LATE_CANCELLATION_PENALTY": "150"},
		"bad currency":       {"CURRENCY": "EURO"},
		"bad retry":          {"RETRY_BACKOFF": "1s,soon"},
		"secret outside dev": {"APP_ENV": "prod"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_ENV", "dev")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
		})
	}
}
