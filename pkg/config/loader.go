package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables described by `env` and
// `envDefault` struct tags. Variables marked `required` must be set.
func Load(cfg any) error {
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: false}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
