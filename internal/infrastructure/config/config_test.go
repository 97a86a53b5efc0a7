package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "./catalogs", cfg.Catalog.Dir)
	assert.False(t, cfg.Browser.Enabled)
	assert.Equal(t, 64, cfg.Runtime.MaxDepth)
	assert.Equal(t, 500, cfg.Runtime.MaxChildren)
	assert.Equal(t, 15*time.Second, cfg.Runtime.OperationTimeout)
	assert.Equal(t, "operation:*:execute", cfg.Webhook.Pattern)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Server, cfg.Server)
	assert.Equal(t, def.Runtime, cfg.Runtime)
	assert.Equal(t, def.Webhook, cfg.Webhook)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                   "9000",
		"LOG_LEVEL":              "debug",
		"CATALOG_DIR":            "/etc/catalogs",
		"BROWSER_ENABLED":        "true",
		"BROWSER_CONTROL_URL":    "ws://127.0.0.1:9222/devtools/browser/abc",
		"MATCH_MAX_DEPTH":        "12",
		"OPERATION_TIMEOUT":      "2s",
		"SNAPSHOT_POLL_INTERVAL": "750ms",
		"WEBHOOK_URL":            "http://collector:9000/events",
	}

	for key, value := range envVars {
		require.NoError(t, os.Setenv(key, value))
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/etc/catalogs", cfg.Catalog.Dir)
	assert.True(t, cfg.Browser.Enabled)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser.ControlURL)
	assert.Equal(t, 12, cfg.Runtime.MaxDepth)
	assert.Equal(t, 2*time.Second, cfg.Runtime.OperationTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.Runtime.PollInterval)
	assert.Equal(t, "http://collector:9000/events", cfg.Webhook.URL)

	// untouched values keep their defaults
	assert.Equal(t, 500, cfg.Runtime.MaxChildren)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	require.NoError(t, os.Setenv("OPERATION_TIMEOUT", "soon"))
	defer os.Unsetenv("OPERATION_TIMEOUT")

	_, err := Load()
	require.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 15*time.Second, cfg.Runtime.OperationTimeout)
}
