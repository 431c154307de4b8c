package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, "INR", cfg.Currency)
	assert.Equal(t, 10*time.Second, cfg.Razorpay.Timeout)
	assert.Equal(t, "host=localhost user=postgres password=postgres dbname=ordercore port=5432 sslmode=disable", cfg.DB.ConnString())
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("STORE", "memory")
	t.Setenv("PORT", "9090")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DB_DSN", "postgres://u:p@db/ordercore")
	t.Setenv("CURRENCY", "usd")
	t.Setenv("SEED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.Razorpay.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "postgres://u:p@db/ordercore", cfg.DB.ConnString())
	assert.Equal(t, "USD", cfg.Currency)
	assert.True(t, cfg.Seed)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"STORE": "redis"}},
		{"bad currency", map[string]string{"CURRENCY": "RUPEE"}},
		{"production without token secret", map[string]string{"APP_ENV": "production", "ACTOR_TOKEN_SECRET": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "test")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
