// Package config loads configuration structs from environment variables.
//
// It combines two steps behind one generic function: an optional one-shot
// load of a .env file into the process environment (godotenv), followed by
// struct parsing driven by `env` and `envDefault` field tags (caarlos0/env).
//
// The loader deliberately keeps no per-type cache and no mutable package
// state beyond the .env sync.Once: every Load call parses the current
// environment, so callers decide the lifetime of their configuration values
// and tests can reload freely.
//
// # Usage
//
//	type QueueConfig struct {
//	    Mode         string        `env:"TASKQUEUE_MODE" envDefault:"fifo"`
//	    Workers      int           `env:"TASKQUEUE_WORKERS" envDefault:"4"`
//	    SnapshotFile string        `env:"TASKQUEUE_SNAPSHOT_FILE"`
//	    TickInterval time.Duration `env:"TASKQUEUE_TICK_INTERVAL" envDefault:"100ms"`
//	}
//
//	var cfg QueueConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// MustLoad panics on failure for configuration the application cannot start
// without.
//
// # Error Handling
//
// Load returns ErrNilPointer for a nil destination and wraps parser failures
// with ErrParsingConfig so callers can match them with errors.Is.
package config
