package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "storefront.db", cfg.DBPath)
	assert.Equal(t, "s3cret", cfg.WebhookSecret)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 100, cfg.WebhookRateLimit)
	assert.Equal(t, time.Second, cfg.WebhookRateWindow)
	assert.Equal(t, 24*time.Hour, cfg.StockCacheTTL)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "WEBHOOK_SECRET")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("WEBHOOK_RATE_LIMIT", "7")
	t.Setenv("WEBHOOK_RATE_WINDOW_SEC", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 7, cfg.WebhookRateLimit)
	assert.Equal(t, 5*time.Second, cfg.WebhookRateWindow)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	t.Setenv("WEBHOOK_RATE_LIMIT", "zero")
	_, err := Load()
	assert.ErrorContains(t, err, "WEBHOOK_RATE_LIMIT")

	t.Setenv("WEBHOOK_RATE_LIMIT", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "WEBHOOK_RATE_LIMIT")

	t.Setenv("WEBHOOK_RATE_LIMIT", "10")
	t.Setenv("REDIS_DB", "nope")
	_, err = Load()
	assert.ErrorContains(t, err, "REDIS_DB")
}
