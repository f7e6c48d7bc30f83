package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytesDefaults(t *testing.T) {
	cfg, err := LoadBytes(nil)
	require.NoError(t, err)

	assert.Equal(t, "lockdash", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Env)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.Timeout.Read)
	assert.Equal(t, 20*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.Retry.Count)
	assert.Equal(t, time.Second, cfg.API.Retry.Delay)
	assert.InDelta(t, 1.5, cfg.API.Retry.Factor, 1e-9)
	assert.Zero(t, cfg.API.Retry.MaxDelay)
	assert.Equal(t, "/login", cfg.API.Login.Path)
	assert.Equal(t, 3*time.Second, cfg.API.Login.Delay)
	assert.True(t, cfg.Refresh.Enabled)
	assert.Equal(t, time.Minute, cfg.Refresh.Interval)
	assert.Equal(t, 1, cfg.Refresh.Retries)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoadBytesOverridesDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte(`
api:
  url: https://locks.example.com
  retry:
    count: 5
    delay: 250ms
    maxdelay: 10s
  headers:
    X-Client: lockdash
refresh:
  enabled: false
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "https://locks.example.com", cfg.API.URL)
	assert.Equal(t, 5, cfg.API.Retry.Count)
	assert.Equal(t, 250*time.Millisecond, cfg.API.Retry.Delay)
	assert.Equal(t, 10*time.Second, cfg.API.Retry.MaxDelay)
	assert.Equal(t, "lockdash", cfg.API.Headers["X-Client"])
	assert.False(t, cfg.Refresh.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvironmentTakesPriority(t *testing.T) {
	t.Setenv("LOCKDASH_SERVER_PORT", "9090")
	t.Setenv("LOCKDASH_API_URL", "http://nuki-bridge:8000")

	cfg, err := LoadBytes([]byte("server:\n  port: 7070\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://nuki-bridge:8000", cfg.API.URL)
}

func TestLoadReadsFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "lockdash.yaml")
	require.NoError(t, os.WriteFile(base, []byte("app:\n  name: front-door\n"), 0o600))
	t.Setenv(EnvConfigFile, base)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "front-door", cfg.App.Name)
}

func TestLoadMissingFileIsOptional(t *testing.T) {
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "lockdash", cfg.App.Name)
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"invalid env", "app:\n  env: qa\n", "app.env"},
		{"port out of range", "server:\n  port: 70000\n", "server.port"},
		{"invalid api url", "api:\n  url: not a url\n", "api.url"},
		{"negative retries", "api:\n  retry:\n    count: -1\n", "api.retry.count"},
		{"zero delay", "api:\n  retry:\n    delay: 0s\n", "api.retry.delay"},
		{"shrinking factor", "api:\n  retry:\n    factor: 0.5\n", "api.retry.factor"},
		{"cap below delay", "api:\n  retry:\n    maxdelay: 10ms\n", "api.retry.maxdelay"},
		{"relative login path", "api:\n  login:\n    path: login\n", "api.login.path"},
		{"bad log level", "log:\n  level: loud\n", "log.level"},
		{"bad protocol", "observability:\n  protocol: udp\n", "observability.protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			require.Error(t, err)

			fields := FieldErrors(err)
			require.NotEmpty(t, fields)
			assert.Equal(t, tt.field, fields[0].Field)
		})
	}
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewMissingFieldError("api.url")
	assert.Equal(t, "config_missing: api.url required set LOCKDASH_API_URL env var or add api.url to config.yaml", err.Error())

	es := Errors{NewInvalidFieldError("a", "bad"), NewInvalidFieldError("b", "worse")}
	assert.Equal(t, "config_invalid: a bad; config_invalid: b worse", es.Error())
}
