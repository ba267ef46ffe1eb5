package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	AmbiguousMatchMostRecent = "most_recent"
	AmbiguousMatchReject     = "reject"
)

// MetricsConfig controls how replies are bucketed into daily rollups.
type MetricsConfig struct {
	Timezone       string `mapstructure:"timezone"`
	AmbiguousMatch string `mapstructure:"ambiguousMatch"`

	location *time.Location
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Timezone:       "Local",
		AmbiguousMatch: AmbiguousMatchMostRecent,
		location:       time.Local,
	}
}

// NewMetricsConfig validates timezone and policy the same way file config is.
func NewMetricsConfig(timezone, ambiguousMatch string) (MetricsConfig, error) {
	cfg := MetricsConfig{Timezone: timezone, AmbiguousMatch: ambiguousMatch}
	if err := validateMetricsConfig(&cfg); err != nil {
		return MetricsConfig{}, err
	}
	return cfg, nil
}

// Location returns the timezone used to truncate "today".
func (c MetricsConfig) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

type MetricsConfigHolder struct {
	current atomic.Value // holds MetricsConfig
}

// NewStaticMetricsConfigHolder returns a holder that never reloads.
func NewStaticMetricsConfigHolder(cfg MetricsConfig) *MetricsConfigHolder {
	holder := &MetricsConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewMetricsConfigHolder() (*MetricsConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("flowpulse")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/flowpulse")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FLOWPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMetricsConfig()
	v.SetDefault("metrics.timezone", defaults.Timezone)
	v.SetDefault("metrics.ambiguousMatch", defaults.AmbiguousMatch)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := loadMetricsConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticMetricsConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := loadMetricsConfig(v)
		if err != nil {
			log.Printf("[metrics-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[metrics-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *MetricsConfigHolder) Get() MetricsConfig {
	if h == nil {
		return DefaultMetricsConfig()
	}
	cfg, ok := h.current.Load().(MetricsConfig)
	if !ok {
		return DefaultMetricsConfig()
	}
	return cfg
}

func loadMetricsConfig(v *viper.Viper) (MetricsConfig, error) {
	var cfg MetricsConfig
	if err := v.UnmarshalKey("metrics", &cfg); err != nil {
		return MetricsConfig{}, err
	}
	if err := validateMetricsConfig(&cfg); err != nil {
		return MetricsConfig{}, err
	}
	return cfg, nil
}

func validateMetricsConfig(cfg *MetricsConfig) error {
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	cfg.location = loc

	cfg.AmbiguousMatch = strings.ToLower(strings.TrimSpace(cfg.AmbiguousMatch))
	switch cfg.AmbiguousMatch {
	case "":
		cfg.AmbiguousMatch = AmbiguousMatchMostRecent
	case AmbiguousMatchMostRecent, AmbiguousMatchReject:
	default:
		return errors.New("metrics.ambiguousMatch must be most_recent or reject")
	}
	return nil
}
