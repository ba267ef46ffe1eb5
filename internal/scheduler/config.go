package scheduler

import (
	"time"

	"github.com/flowpulse/flowpulse/internal/config"
)

// Config controls how often closed days are recounted and how far back.
type Config struct {
	Enabled      bool
	RunInterval  time.Duration
	LookbackDays int
	JobTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		RunInterval:  time.Hour,
		LookbackDays: 2,
		JobTimeout:   5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:      cfg.Reconcile.Enabled,
		RunInterval:  time.Duration(cfg.Reconcile.IntervalSecs) * time.Second,
		LookbackDays: cfg.Reconcile.LookbackDays,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = defaults.LookbackDays
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
