package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackhub/backend/libs/framing"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_DRIVER", "postgres")
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/trackhub")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8084", cfg.HTTPAddress())
	assert.Equal(t, []string{"0.0.0.0:9000"}, cfg.TCP.Addresses)
	assert.Equal(t, int64(1), cfg.Auth.GlobalTenantID)
	assert.Equal(t, 30*time.Second, cfg.PingInterval())
	assert.Equal(t, 15*time.Second, cfg.WriteTimeout())
	assert.Equal(t, 30*time.Minute, cfg.TripGap())

	fc := cfg.FramingConfig()
	assert.Equal(t, framing.DefaultDelimiters, fc.Delimiters)
	assert.Equal(t, 30*time.Minute, fc.IdleTimeout)
}

func TestLoadRequiresDSNForPostgres(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("DATABASE_DRIVER", "memory")
	_, err = Load()
	require.NoError(t, err)

	t.Setenv("DATABASE_DRIVER", "sqlite")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "tracking.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: memory
tcp:
  addresses: ["127.0.0.1:5001", "127.0.0.1:5002"]
  idleTimeout: 2m
framing:
  delimiters: '\n;'
  flushAfter: 250ms
analytics:
  tripGap: 45m
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TCP_BROADCAST", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:5001", "127.0.0.1:5002"}, cfg.TCP.Addresses)
	assert.True(t, cfg.TCP.Broadcast)
	assert.Equal(t, 45*time.Minute, cfg.TripGap())
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORS.AllowedOrigins)

	fc := cfg.FramingConfig()
	assert.Equal(t, []byte("\n;"), fc.Delimiters)
	assert.Equal(t, 250*time.Millisecond, fc.FlushAfter)
	assert.Equal(t, 2*time.Minute, fc.IdleTimeout)
}
