package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"API_URL", "NEXT_PUBLIC_API_URL", "REQUEST_TIMEOUT", "STATE_PATH",
		"LOG_LEVEL", "LOG_FILE", "CONVERSATION_LOG_ENABLED",
		"CONVERSATION_LOG_DIR", "CONVERSATION_LOG_QUEUE_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.NotEmpty(t, cfg.StatePath)
	assert.NotEmpty(t, cfg.LogFile)
	assert.False(t, cfg.ConversationLog.Enabled)
	assert.Equal(t, 256, cfg.ConversationLog.QueueSize)
	assert.True(t, cfg.IsLocal())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEXT_PUBLIC_API_URL", "https://todo.example.com/")
	t.Setenv("REQUEST_TIMEOUT", "45")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STATE_PATH", "/tmp/state.db")
	t.Setenv("CONVERSATION_LOG_ENABLED", "yes")
	t.Setenv("CONVERSATION_LOG_QUEUE_SIZE", "-4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://todo.example.com", cfg.APIURL)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "/tmp/state.db", cfg.StatePath)
	assert.True(t, cfg.ConversationLog.Enabled)
	assert.Equal(t, 256, cfg.ConversationLog.QueueSize)
	assert.False(t, cfg.IsLocal())
}

func TestAPIURLTakesPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_URL", "http://127.0.0.1:9000")
	t.Setenv("NEXT_PUBLIC_API_URL", "https://ignored.example.com")
	t.Setenv("REQUEST_TIMEOUT", "1m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.APIURL)
	assert.Equal(t, time.Minute, cfg.RequestTimeout)
}

func TestLoadRejectsBadURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_URL", "ftp://example.com")

	_, err := Load()
	assert.ErrorContains(t, err, "API_URL")
}

func TestFromEnvDefersValidationToOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_URL", "ftp://example.com")

	cfg := FromEnv()
	require.Error(t, cfg.Validate())

	cfg.APIURL = "https://todo.example.com"
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			APIURL:         "http://localhost:8000",
			RequestTimeout: time.Second,
			StatePath:      "state.db",
			LogFile:        "todochat.log",
			ConversationLog: ConversationLogConfig{
				Dir:       "logs",
				QueueSize: 1,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty url", func(c *Config) { c.APIURL = "" }, "API_URL cannot be empty"},
		{"relative url", func(c *Config) { c.APIURL = "localhost:8000" }, "API_URL"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "REQUEST_TIMEOUT"},
		{"empty state path", func(c *Config) { c.StatePath = "" }, "STATE_PATH"},
		{"empty log file", func(c *Config) { c.LogFile = "" }, "LOG_FILE"},
		{"zero queue", func(c *Config) { c.ConversationLog.QueueSize = 0 }, "QUEUE_SIZE"},
		{"enabled without dir", func(c *Config) {
			c.ConversationLog.Enabled = true
			c.ConversationLog.Dir = ""
		}, "CONVERSATION_LOG_DIR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
