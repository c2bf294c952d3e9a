package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// dotenvOnce ensures the optional .env file is read at most once per process.
// The loader itself keeps no per-type cache: every Load call parses the
// environment fresh, so tests and long-lived processes can reload settings by
// calling Load again after changing variables.
var dotenvOnce sync.Once

// Load populates the provided configuration struct from environment variables
// based on `env` and `envDefault` field tags.
//
// Before the first parse, the default .env file is loaded into the process
// environment if it exists; a missing file is not an error.
//
// Example:
//
//	type QueueConfig struct {
//		Workers      int           `env:"TASKQUEUE_WORKERS" envDefault:"4"`
//		TickInterval time.Duration `env:"TASKQUEUE_TICK_INTERVAL" envDefault:"100ms"`
//	}
//
//	var cfg QueueConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// Ignore errors - the .env file might not exist and that's ok
		_ = godotenv.Load()
	})

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
// This is useful for configurations that are required for the application to start.
//
// Example:
//
//	var cfg QueueConfig
//	config.MustLoad(&cfg)
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}
