package queue

import "time"

// Config declares the environment surface of a queue. It is consumed by
// NewFromEnv through the pkg/config loader; explicit options passed to
// NewFromEnv override whatever the environment provided.
type Config struct {
	Name            string        `env:"TASKQUEUE_NAME" envDefault:"default"`
	Mode            string        `env:"TASKQUEUE_MODE" envDefault:"fifo"`
	Workers         int           `env:"TASKQUEUE_WORKERS" envDefault:"4"`
	TickInterval    time.Duration `env:"TASKQUEUE_TICK_INTERVAL" envDefault:"100ms"`
	SnapshotFile    string        `env:"TASKQUEUE_SNAPSHOT_FILE"`
	EventBufferSize int           `env:"TASKQUEUE_EVENT_BUFFER_SIZE" envDefault:"16"`
}

// options derives the functional options equivalent to this config.
func (c Config) options() ([]Option, error) {
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithName(c.Name),
		WithMode(mode),
		WithWorkers(c.Workers),
		WithTickInterval(c.TickInterval),
		WithEventBufferSize(c.EventBufferSize),
	}
	if c.SnapshotFile != "" {
		opts = append(opts, WithSnapshotFile(c.SnapshotFile))
	}
	return opts, nil
}
