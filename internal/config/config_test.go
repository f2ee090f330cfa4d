package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 7*24*time.Hour, cfg.Cart.MaxAge)
	assert.Equal(t, 30*time.Minute, cfg.Cart.IdleTimeout)
	assert.Equal(t, 8, cfg.Catalog.Concurrency)
	assert.False(t, cfg.PublishesEvents())
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
http_addr: ":9090"
storage:
  backend: redis
  redis_addr: "cache:6379"
catalog:
  url: "http://catalog:8000"
  timeout: 2s
  concurrency: 4
kafka:
  brokers: ["k1:9092", "k2:9092"]
cart:
  max_age: 72h
  idle_timeout: 10m
jwt:
  secret: "` + secret + `"
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 2*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 4, cfg.Catalog.Concurrency)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 72*time.Hour, cfg.Cart.MaxAge)
	assert.Equal(t, 10*time.Minute, cfg.Cart.IdleTimeout)
	assert.Equal(t, "cart-events", cfg.Kafka.Topic, "unset keys keep defaults")
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "storage:\n  backend: redis\n")
	t.Setenv("STORAGE_BACKEND", "Postgres")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("CART_MAX_AGE", "48h")
	t.Setenv("SESSION_IDLE_TIMEOUT", "5m")
	t.Setenv("VALIDATION_CONCURRENCY", "3")
	t.Setenv("JWT_SECRET", secret)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 48*time.Hour, cfg.Cart.MaxAge)
	assert.Equal(t, 5*time.Minute, cfg.Cart.IdleTimeout)
	assert.Equal(t, 3, cfg.Catalog.Concurrency)
	assert.True(t, cfg.PublishesEvents())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		env  map[string]string
		msg  string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }, nil, "failed to read config file"},
		{"bad yaml", func(t *testing.T) string { return writeFile(t, "storage: [") }, nil, "failed to parse config file"},
		{"bad duration", func(*testing.T) string { return "" }, map[string]string{"CART_MAX_AGE": "a week"}, "invalid CART_MAX_AGE"},
		{"bad concurrency", func(*testing.T) string { return "" }, map[string]string{"VALIDATION_CONCURRENCY": "many"}, "invalid VALIDATION_CONCURRENCY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.path(t))
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"missing secret", func(c *Config) { c.JWT.Secret = "" }, ErrMissingSecret},
		{"short secret", func(c *Config) { c.JWT.Secret = "short" }, ErrWeakSecret},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.JWT.Secret = secret
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}

	cfg := Default()
	cfg.JWT.Secret = secret
	cfg.Catalog.Concurrency = 0
	assert.ErrorContains(t, cfg.Validate(), "concurrency")

	cfg = Default()
	cfg.JWT.Secret = secret
	cfg.Cart.IdleTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "idle timeout")
}
