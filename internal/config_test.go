package internal

import (
	"testing"

	"my-chat-backend/domain/event"
	"my-chat-backend/errors"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Host:                 "localhost",
		Port:                 5001,
		LogLevel:             "INFO",
		BadgerFilepath:       "/tmp/badger",
		BlugeFilepath:        "/tmp/bluge",
		MediaDir:             "/tmp/media",
		MediaBaseURL:         "/media",
		MaxMediaBytes:        1024,
		JWTSecret:            "0123456789abcdef",
		TokenDuration:        3600e9,
		MaxGroupSize:         10,
		StoreTimeout:         1e9,
		UploadTimeout:        1e9,
		BlockedSendPolicy:    "suppress",
		ConnectionBufferSize: 8,
		RegistryShards:       4,
		QueueThreshold:       0.8,
		CharReplacement:      "*",
		SearchLimit:          20,
		RestartInterval:      2e8,
	}
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("BLUGE_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "a-long-enough-secret")
	t.Setenv("ECHO_KINDS", "newMessage, groupTyping")
	t.Setenv("LIMIT_MESSAGES", "50")

	cfg, err := LoadConfig()

	req.NoError(err)
	req.Equal(5001, cfg.Port)
	req.Equal("suppress", cfg.BlockedSendPolicy)
	req.NotNil(cfg.LimitMessages)
	req.Equal(50, *cfg.LimitMessages)
	kinds, err := cfg.EchoKindList()
	req.NoError(err)
	req.Equal([]event.Kind{event.NewMessageKind, event.GroupTypingKind}, kinds)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"short secret", func(c *Config) { c.JWTSecret = "short" }},
		{"unknown policy", func(c *Config) { c.BlockedSendPolicy = "drop" }},
		{"tiny groups", func(c *Config) { c.MaxGroupSize = 1 }},
		{"two replacement characters", func(c *Config) { c.CharReplacement = "**" }},
		{"unknown echo kind", func(c *Config) { c.EchoKinds = "newMessage,shout" }},
		{"no store timeout", func(c *Config) { c.StoreTimeout = 0 }},
		{"queue threshold above one", func(c *Config) { c.QueueThreshold = 1.5 }},
	}
	require.NoError(t, validConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), errors.ErrInvalidArgument)
		})
	}
}

func TestConfig_Origins(t *testing.T) {
	cfg := validConfig()
	cfg.AllowedOrigins = "http://localhost:5173, https://chat.example.com,"
	require.Equal(t, []string{"http://localhost:5173", "https://chat.example.com"}, cfg.Origins())
}
