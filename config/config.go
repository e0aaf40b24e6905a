// Package config loads runtime settings of cycle pipelines from files and
// CYCLE_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"pipelined.dev/cycle"
	"pipelined.dev/cycle/schedule"
)

// EnvPrefix is the prefix of environment variables.
const EnvPrefix = "CYCLE"

// Config represents pipeline runtime settings.
type Config struct {
	// SampleRate of the scheduler sample clock.
	SampleRate int `mapstructure:"sample_rate"`
	// BufferSize is the number of frames per buffer cycle.
	BufferSize int `mapstructure:"buffer_size"`
	// Strategy is one of "phased", "streaming", "parallel", "reactive".
	Strategy string `mapstructure:"strategy"`
	// CaptureTiming is one of "none", "sample_based", "buffer_based".
	CaptureTiming string `mapstructure:"capture_timing"`
	// ProcessTiming is one of "none", "sample_based", "buffer_based".
	ProcessTiming string `mapstructure:"process_timing"`
	// Cycles limits pipeline cycles, 0 means unbounded.
	Cycles uint64 `mapstructure:"cycles"`
	// SamplesPerOperation is the process phase delay quantum.
	SamplesPerOperation uint64 `mapstructure:"samples_per_operation"`
	Log                 LogConfig `mapstructure:"log"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		SampleRate:    48000,
		BufferSize:    512,
		Strategy:      "phased",
		CaptureTiming: "buffer_based",
		ProcessTiming: "sample_based",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers default values in v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()
	v.SetDefault("sample_rate", defaults.SampleRate)
	v.SetDefault("buffer_size", defaults.BufferSize)
	v.SetDefault("strategy", defaults.Strategy)
	v.SetDefault("capture_timing", defaults.CaptureTiming)
	v.SetDefault("process_timing", defaults.ProcessTiming)
	v.SetDefault("cycles", defaults.Cycles)
	v.SetDefault("samples_per_operation", defaults.SamplesPerOperation)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	// CYCLE_LOG_LEVEL for log.level
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from path, if not empty, on top of defaults
// and environment.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates configuration.
func FromViper(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values.
func (c *Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer_size must be positive, got %d", c.BufferSize))
	}
	if _, err := cycle.ParseStrategy(c.Strategy); err != nil {
		errs = append(errs, err)
	}
	if _, err := schedule.ParseDelayContext(c.CaptureTiming); err != nil {
		errs = append(errs, fmt.Errorf("capture_timing: %w", err))
	}
	if _, err := schedule.ParseDelayContext(c.ProcessTiming); err != nil {
		errs = append(errs, fmt.Errorf("process_timing: %w", err))
	}
	return errors.Join(errs...)
}

// PipelineOptions converts configuration into pipeline options. The
// configuration must be valid.
func (c *Config) PipelineOptions() []cycle.Option {
	strategy, _ := cycle.ParseStrategy(c.Strategy)
	captureTiming, _ := schedule.ParseDelayContext(c.CaptureTiming)
	processTiming, _ := schedule.ParseDelayContext(c.ProcessTiming)
	return []cycle.Option{
		cycle.WithStrategy(strategy),
		cycle.WithCaptureTiming(captureTiming),
		cycle.WithProcessTiming(processTiming),
	}
}
