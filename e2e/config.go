package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_DEBUG_JSON dumps every HTTP response body and socket frame
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_WAIT bounds every wait for a socket frame
	Wait time.Duration `envconfig:"E2E_WAIT" default:"5s"`
	// E2E_LOG_LEVEL is the level of the in-process backend
	LogLevel string `envconfig:"E2E_LOG_LEVEL" default:"INFO"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
