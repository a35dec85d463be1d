package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"marketplace": {"base_url": "https://api.example.com"},
		"mongodb": {"uri": "mongodb://localhost:27017", "db": "statshub"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5, cfg.Stats.CacheMinutes)
	assert.Equal(t, "/client/me/summary", cfg.Marketplace.Endpoints.ClientSummary)
	assert.Equal(t, "/inspector/bids", cfg.Marketplace.Endpoints.InspectorBids)
	assert.Equal(t, "stats.computed", cfg.RabbitMQ.EventRoutingKey)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"port": 9000,
		"marketplace": {"base_url": "https://api.example.com", "endpoints": {"client_jobs": "/v2/jobs"}},
		"stats": {"cache_minutes": 10, "separate_pending": true},
		"mongodb": {"uri": "mongodb://localhost:27017"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 10, cfg.Stats.CacheMinutes)
	assert.True(t, cfg.Stats.SeparatePending)
	assert.Equal(t, "/v2/jobs", cfg.Marketplace.Endpoints.ClientJobs)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("STATSHUB_MARKETPLACE_URL", "https://override.example.com")
	t.Setenv("STATSHUB_PORT", "7070")

	path := writeConfig(t, `{"mongodb": {"uri": "mongodb://localhost:27017"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.Marketplace.BaseURL)
	assert.Equal(t, 7070, cfg.Port)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing base url", body: `{"mongodb": {"uri": "mongodb://x"}}`},
		{name: "missing mongo uri", body: `{"marketplace": {"base_url": "https://x"}}`},
		{name: "aws without bucket", body: `{"marketplace": {"base_url": "https://x"}, "mongodb": {"uri": "mongodb://x"}, "aws": {"enabled": true}}`},
		{name: "bad json", body: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
