package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddress())
	assert.Equal(t, 5*time.Second, cfg.Primary.Timeout)
	assert.Equal(t, 64, cfg.Primary.MaxInFlight)
	assert.Equal(t, 30*time.Minute, cfg.FramingConfig().IdleTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("GATEWAY_PORT", "7001")
	t.Setenv("PRIMARY_DESTINATION", "http://tracking:8084")
	t.Setenv("SECONDARY_DESTINATION", "legacy.example:5000")
	t.Setenv("GATEWAY_TARGETS", "10.0.0.5:6000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7001", cfg.ListenAddress())
	assert.Equal(t, "http://tracking:8084", cfg.Primary.URL)

	valid, invalid := cfg.TargetAddresses()
	assert.Equal(t, []string{"10.0.0.5:6000", "legacy.example:5000"}, valid)
	assert.Empty(t, invalid)
}

func TestTargetAddressesSkipsInvalid(t *testing.T) {
	cfg := &Config{}
	cfg.Targets = []string{"good:1", "nope", ":5000", "host:99999", "good:1"}
	cfg.Secondary = "other:2"

	valid, invalid := cfg.TargetAddresses()
	assert.Equal(t, []string{"good:1", "other:2"}, valid)
	assert.Equal(t, []string{"nope", ":5000", "host:99999"}, invalid)
}
