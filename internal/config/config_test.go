package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/shop")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("TAX_RATE", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("JWT_TTL", "")
	t.Setenv("RUN_MIGRATIONS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "0.15", cfg.TaxRate.String())
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.True(t, cfg.RunMigrations)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "orders.completed", cfg.Kafka.Topic)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_KafkaBrokers(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/shop")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("KAFKA_BROKERS", " broker-1:9092, ,broker-2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	assert.EqualError(t, err, "DATABASE_URL must be set")
}

func TestLoad_InvalidTaxRate(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/shop")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TAX_RATE", "-0.1")

	_, err := Load()
	assert.Error(t, err)
}
