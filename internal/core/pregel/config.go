package pregel

import (
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/flowgraph/gremlin/pkg/validation"
)

// Config holds graph computer configuration.
type Config struct {
	// MaxSupersteps bounds the computation; 0 leaves termination to the program.
	MaxSupersteps int `yaml:"max_supersteps" validate:"gte=0"`
	Parallelism   int `yaml:"parallelism" validate:"gte=0"`
	// ParallelismFactor scales CPU count when Parallelism is not set.
	// Example: 1.5 => 1.5x NumCPU workers. Ignored if Parallelism > 0.
	ParallelismFactor float64 `yaml:"parallelism_factor" validate:"gte=0"`
	// QueueCapacity sets the per-worker queue capacity for the scheduler.
	// Defaults to 100 when <= 0.
	QueueCapacity int `yaml:"queue_capacity" validate:"gte=0"`
	// Timeout bounds a single superstep.
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	RetryPolicy RetryPolicy   `yaml:"retry"`
	// StreamOutput starts the event streamer even without handlers.
	StreamOutput bool `yaml:"stream_output"`
	// CheckpointEvery saves a snapshot after every n-th superstep when a
	// checkpoint saver is attached. 0 disables checkpoints.
	CheckpointEvery int          `yaml:"checkpoint_every" validate:"gte=0"`
	Logger          *slog.Logger `yaml:"-" validate:"-"`
}

// RetryPolicy defines retry behavior for failed vertex executions.
type RetryPolicy struct {
	MaxRetries int `yaml:"max_retries" validate:"gte=0,lte=10"`
	BackoffMs  int `yaml:"backoff_ms" validate:"gte=0"`
}

// DefaultConfig returns a configuration sized to the host.
func DefaultConfig() Config {
	return Config{
		Parallelism:   runtime.NumCPU(),
		QueueCapacity: 100,
	}
}

// Validate checks the configuration's field constraints.
func (c Config) Validate() error {
	return validation.ValidateStruct(c)
}

// withDefaults fills in effective parallelism, queue capacity and logger.
func (c Config) withDefaults() Config {
	if c.Parallelism <= 0 {
		if c.ParallelismFactor > 0 {
			c.Parallelism = int(math.Ceil(c.ParallelismFactor * float64(runtime.NumCPU())))
		} else {
			c.Parallelism = runtime.NumCPU()
		}
		if c.Parallelism < 1 {
			c.Parallelism = 1
		}
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
