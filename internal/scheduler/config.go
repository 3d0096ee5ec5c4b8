package scheduler

import (
	"errors"
	"time"

	"github.com/ecodeli/ecodeli/internal/config"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// Config controls how often the scheduler wakes up and which jobs it runs.
type Config struct {
	RunInterval       time.Duration
	BillingJobTimeout time.Duration
	// EnabledJobs restricts the scheduler to the named jobs. Empty enables all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       time.Hour,
		BillingJobTimeout: 30 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:       cfg.SchedulerInterval,
		BillingJobTimeout: cfg.SchedulerJobTimeout,
		EnabledJobs:       cfg.SchedulerJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BillingJobTimeout <= 0 {
		c.BillingJobTimeout = defaults.BillingJobTimeout
	}
	return c
}
