package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Bootstrap carries the handful of settings that must be known before
// the config file itself can be located and parsed. Values come from
// PERCH_* environment variables and lose to explicit CLI flags.
type Bootstrap struct {
	ConfigPath string `envconfig:"CONFIG"`
	LogLevel   string `envconfig:"LOG_LEVEL"`
}

// LoadBootstrap reads PERCH_CONFIG and PERCH_LOG_LEVEL from the
// environment.
func LoadBootstrap() (Bootstrap, error) {
	var b Bootstrap
	if err := envconfig.Process("perch", &b); err != nil {
		return Bootstrap{}, fmt.Errorf("process environment: %w", err)
	}
	return b, nil
}
