package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "krovetz", cfg.Build.Stemmer)
	assert.Equal(t, 100, cfg.Query.DefaultResults)
	assert.Equal(t, 60*time.Second, cfg.Redis.CacheTTL)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gondri.yaml")
	data := []byte(`
repository:
  path: /data/robust04
build:
  stemmer: snowball
  workers: 8
query:
  model: "okapi,k1:1.2,b:0.75,k3:7"
redis:
  enabled: true
  cacheTTL: 5m
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/robust04", cfg.Repository.Path)
	assert.Equal(t, "snowball", cfg.Build.Stemmer)
	assert.Equal(t, 8, cfg.Build.Workers)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL)
	// untouched sections keep defaults
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadRejectsUnknownStemmer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("build:\n  stemmer: porter9\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "porter9")
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"GONDRI_REPOSITORY_PATH": "/tmp/repo",
		"GONDRI_SERVER_PORT":     "9999",
		"GONDRI_KAFKA_BROKERS":   "a:1,b:2",
		"GONDRI_REDIS_ENABLED":   "true",
		"GONDRI_BUILD_WORKERS":   "not-a-number",
	}
	cfg := Default()
	applyEnvOverrides(cfg, func(k string) string { return env[k] })

	assert.Equal(t, "/tmp/repo", cfg.Repository.Path)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 4, cfg.Build.Workers)
}

func TestServerOverridesAndValidation(t *testing.T) {
	env := map[string]string{
		"GONDRI_SERVER_RATE_LIMIT":    "50",
		"GONDRI_SERVER_ADMIN_KEYS":    "k1,k2",
		"GONDRI_KAFKA_QUERY_TOPIC":    "queries-test",
		"GONDRI_KAFKA_CONSUMER_GROUP": "dash",
	}
	cfg := Default()
	applyEnvOverrides(cfg, func(k string) string { return env[k] })
	assert.Equal(t, 50, cfg.Server.RateLimit)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.AdminKeys)
	assert.Equal(t, "queries-test", cfg.Kafka.QueryTopic)
	assert.Equal(t, "dash", cfg.Kafka.ConsumerGroup)
	require.NoError(t, cfg.Validate())

	cfg.Server.RateWindow = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Query.MaxResults = cfg.Query.DefaultResults - 1
	assert.Error(t, cfg.Validate())
}
