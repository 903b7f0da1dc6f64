package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/rtsock"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rtsock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "ws", cfg.Server.Scheme)
	assert.Equal(t, 7350, cfg.Server.Port)
	assert.Equal(t, "en", cfg.Server.Lang)
	assert.True(t, cfg.Session.AppearOnline)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.NoError(t, cfg.validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  scheme: wss
  host: game.example.com
  port: 443
  call_timeout: 3s
session:
  token: secret
  appear_online: false
rate_limit:
  enabled: false
log:
  level: debug
  format: json
  outputs: [stdout]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss", cfg.Server.Scheme)
	assert.Equal(t, "game.example.com", cfg.Server.Host)
	assert.Equal(t, 443, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.CallTimeout)
	assert.Equal(t, "en", cfg.Server.Lang, "unset keys keep their defaults")
	assert.Equal(t, "secret", cfg.Session.Token)
	assert.False(t, cfg.Session.AppearOnline)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"stdout"}, cfg.Log.Outputs)

	sock := cfg.Socket()
	assert.Equal(t, "wss://game.example.com:443/ws?lang=en&status=false&token=secret", sock.Address(rtsock.NewSession("secret", ""), false))
	assert.False(t, sock.RateLimit.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RTSOCK_SESSION_TOKEN", "from-env")
	t.Setenv("RTSOCK_SERVER_PORT", "9000")

	cfg, err := Load(writeConfig(t, "server:\n  host: localhost\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Session.Token)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoadConfigEnvPath(t *testing.T) {
	t.Setenv("RTSOCK_CONFIG", writeConfig(t, "serve:\n  addr: \":9999\"\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Serve.Addr)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad log level", "log:\n  level: loud\n"},
		{"bad scheme", "server:\n  scheme: http\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"bad rate limit", "rate_limit:\n  enabled: true\n  burst: 0\n"},
		{"bad yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	cfg := Default()
	cfg.RateLimit = RateLimitConfig{Enabled: true, MessagesPerSecond: 5, Burst: 10}

	rl := cfg.RateLimiter()
	assert.True(t, rl.Enabled)
	assert.Equal(t, 10, rl.Burst)
	assert.NotNil(t, rl.NewLimiter())

	cfg.RateLimit.Enabled = false
	assert.Nil(t, cfg.RateLimiter().NewLimiter())
}
