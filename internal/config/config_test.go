package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "http://localhost:3000", cfg.ServerURL)
	require.Equal(t, "/ws", cfg.SocketPath)
	require.Equal(t, time.Second, cfg.ReconnectBaseDelay)
	require.Equal(t, 30*time.Second, cfg.ReconnectMaxDelay)
	require.Equal(t, 300*time.Millisecond, cfg.ReadSettleDelay)
	require.Equal(t, "8080", cfg.APIPort)
	require.Equal(t, "info", cfg.LogLevel)
	require.False(t, cfg.TracingEnabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CHAT_SERVER_URL", "https://chat.example.com")
	t.Setenv("CHAT_USER_ID", "42")
	t.Setenv("RECONNECT_BASE_DELAY", "500ms")
	t.Setenv("READ_SETTLE_DELAY", "1s")
	t.Setenv("RATE_LIMIT_REQUESTS", "10")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()

	require.Equal(t, "https://chat.example.com", cfg.ServerURL)
	require.Equal(t, int64(42), cfg.UserID)
	require.Equal(t, 500*time.Millisecond, cfg.ReconnectBaseDelay)
	require.Equal(t, time.Second, cfg.ReadSettleDelay)
	require.Equal(t, 10, cfg.RateLimitRequests)
	require.True(t, cfg.TracingEnabled)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CHAT_USER_ID", "not-a-number")
	t.Setenv("RECONNECT_MAX_DELAY", "soon")

	cfg := Load()

	require.Equal(t, int64(0), cfg.UserID)
	require.Equal(t, 30*time.Second, cfg.ReconnectMaxDelay)
}
