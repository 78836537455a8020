// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: northbound
    user: northbound
  redis:
    address: localhost:6379
predictions:
  s3_bucket: northbound-artifacts
`

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 24, cfg.Subscriptions.VerificationTTL)
	assert.Equal(t, "America/Toronto", cfg.Subscriptions.DefaultTimezone)
	assert.Equal(t, []string{"USD_CAD", "EUR_CAD"}, cfg.Predictions.DefaultPairs)
	assert.Equal(t, RateLimitConfig{MaxRequests: 5, WindowSeconds: 3600}, cfg.RateLimits["subscribe"])
	assert.Equal(t, RateLimitConfig{MaxRequests: 10, WindowSeconds: 3600}, cfg.RateLimits["unsubscribe"])
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFileRejectsMissingPostgres(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, `
database:
  redis:
    address: localhost:6379
predictions:
  s3_bucket: b
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.host")
}

func TestLoadFromFileRejectsBadRateLimit(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, minimalConfig+`
rate_limits:
  subscribe:
    max_requests: 0
    window_seconds: 3600
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limits.subscribe")
}

func TestGetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "northbound", SSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=northbound sslmode=require", p.GetDSN())
}
