// Package config provides environment configuration for the client daemon.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the client engine and daemon.
type Config struct {
	// Chat server
	ServerURL   string
	SocketPath  string
	AuthToken   string
	UserID      int64
	HTTPTimeout time.Duration

	// Reconnection
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration

	// Read receipts
	ReadSettleDelay time.Duration

	// Local control API
	APIPort         string
	APIReadTimeout  time.Duration
	APIWriteTimeout time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from a .env file (if present) and environment
// variables.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Chat server
		ServerURL:   getEnv("CHAT_SERVER_URL", "http://localhost:3000"),
		SocketPath:  getEnv("CHAT_SOCKET_PATH", "/ws"),
		AuthToken:   getEnv("CHAT_AUTH_TOKEN", ""),
		UserID:      getInt64Env("CHAT_USER_ID", 0),
		HTTPTimeout: getDurationEnv("CHAT_HTTP_TIMEOUT", 30*time.Second),

		// Reconnection
		ReconnectBaseDelay: getDurationEnv("RECONNECT_BASE_DELAY", time.Second),
		ReconnectMaxDelay:  getDurationEnv("RECONNECT_MAX_DELAY", 30*time.Second),

		// Read receipts
		ReadSettleDelay: getDurationEnv("READ_SETTLE_DELAY", 300*time.Millisecond),

		// Local control API
		APIPort:         getEnv("API_PORT", "8080"),
		APIReadTimeout:  getDurationEnv("API_READ_TIMEOUT", 15*time.Second),
		APIWriteTimeout: getDurationEnv("API_WRITE_TIMEOUT", 30*time.Second),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
