package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
log:
  level: debug
backend:
  url: https://hr.example.com/api
  token: abc
auto_update:
  ttl_seconds: 600
  refresh_enabled: true
  refresh_interval_seconds: 60
history:
  size: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "https://hr.example.com/api", cfg.Backend.URL)
	assert.Equal(t, "nfd/update-expired/", cfg.Backend.UpdateExpiredPath)
	assert.Equal(t, 10*time.Minute, cfg.AutoUpdate.TTL())
	assert.Equal(t, time.Minute, cfg.AutoUpdate.RefreshInterval())
	assert.True(t, cfg.AutoUpdate.RefreshEnabled)
	assert.Equal(t, 50, cfg.History.Size)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout())
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[backend]
url = "https://hr.example.com"
check_expired_path = "records/check-expired/"

[auto_update]
ttl_seconds = 120
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "records/check-expired/", cfg.Backend.CheckExpiredPath)
	assert.Equal(t, 2*time.Minute, cfg.AutoUpdate.TTL())
	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NFD_BACKEND_TOKEN", "from-env")
	t.Setenv("NFD_AUTO_UPDATE_TTL", "90")
	t.Setenv("NFD_WEBHOOK_ENABLED", "true")
	t.Setenv("NFD_HISTORY_SIZE", "not-a-number")

	path := writeFile(t, "config.yaml", "backend:\n  token: from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Backend.Token)
	assert.Equal(t, 90*time.Second, cfg.AutoUpdate.TTL())
	assert.True(t, cfg.Server.Webhook.Enabled)
	assert.Equal(t, 100, cfg.History.Size)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "bad yaml", file: "c.yaml", content: "backend: [\n"},
		{name: "bad toml", file: "c.toml", content: "[backend\n"},
		{name: "invalid url", file: "c.yaml", content: "backend:\n  url: not a url\n"},
		{name: "absolute endpoint path", file: "c.yaml", content: "backend:\n  update_expired_path: /nfd/update-expired/\n"},
		{name: "zero ttl", file: "c.yaml", content: "auto_update:\n  ttl_seconds: 0\n"},
		{name: "refresh without interval", file: "c.yaml", content: "auto_update:\n  refresh_enabled: true\n  refresh_interval_seconds: 0\n"},
		{name: "bad log level", file: "c.yaml", content: "log:\n  level: loud\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestDefaultsAreValid(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	ApplyDefaults(cfg)
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 30*time.Minute, cfg.AutoUpdate.TTL())
}

func TestRedacted(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Backend.Token = "secret"
	cfg.History.RedisURL = "redis://:pw@localhost:6379/0"

	r := cfg.Redacted()
	assert.Equal(t, "****", r.Backend.Token)
	assert.Equal(t, "****", r.History.RedisURL)
	assert.Equal(t, "", r.Server.Webhook.SecretToken)
	assert.Equal(t, "secret", cfg.Backend.Token)

	data, err := cfg.RedactedJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}
