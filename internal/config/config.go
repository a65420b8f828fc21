// ABOUTME: Application configuration loaded from the environment
// ABOUTME: Parses CHIME_* variables with caarlos0/env and validates them
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/chime-audio/chime/pkg/audio/output"
	"github.com/chime-audio/chime/pkg/chime"
)

// Prefix is prepended to every variable name
const Prefix = "CHIME_"

// Config holds application settings. Command line flags override it.
type Config struct {
	Driver             string        `env:"DRIVER" envDefault:"malgo"`
	Device             string        `env:"DEVICE"`
	MasterVolume       float64       `env:"MASTER_VOLUME" envDefault:"0.7"`
	MaxPendingTasks    int           `env:"MAX_PENDING_TASKS" envDefault:"1024"`
	Limiter            bool          `env:"LIMITER" envDefault:"false"`
	DeviceRate         int           `env:"DEVICE_RATE"`
	RejectRateMismatch bool          `env:"REJECT_RATE_MISMATCH" envDefault:"false"`
	PeriodFrames       int           `env:"PERIOD_FRAMES" envDefault:"441"`
	BufferFrames       int           `env:"BUFFER_FRAMES" envDefault:"2205"`
	Buffers            int           `env:"BUFFERS" envDefault:"3"`
	SoundBank          string        `env:"SOUND_BANK"`
	RemoteAddr         string        `env:"REMOTE_ADDR"`
	Advertise          bool          `env:"ADVERTISE" envDefault:"false"`
	Name               string        `env:"NAME" envDefault:"chime"`
	LogFile            string        `env:"LOG_FILE" envDefault:"chime.log"`
	StateInterval      time.Duration `env:"STATE_INTERVAL" envDefault:"1s"`
}

// Load reads the process environment
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads the given variables instead of the process environment
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("environment variables are invalid: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and cross-field constraints
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(output.Drivers(), c.Driver) {
		errs = append(errs, fmt.Errorf("unknown driver %q (available: %s)", c.Driver, strings.Join(output.Drivers(), ", ")))
	}
	if c.MasterVolume < 0 || c.MasterVolume > 1 {
		errs = append(errs, fmt.Errorf("master volume must be within 0..1, got %v", c.MasterVolume))
	}
	if c.DeviceRate != 0 && (c.DeviceRate < 8000 || c.DeviceRate > 384000) {
		errs = append(errs, fmt.Errorf("device rate out of range: %d", c.DeviceRate))
	}
	if c.PeriodFrames <= 0 {
		errs = append(errs, fmt.Errorf("period frames must be positive, got %d", c.PeriodFrames))
	}
	if c.BufferFrames < c.PeriodFrames {
		errs = append(errs, fmt.Errorf("buffer frames (%d) must hold at least one period (%d)", c.BufferFrames, c.PeriodFrames))
	}
	if c.Buffers < 2 {
		errs = append(errs, fmt.Errorf("need at least 2 buffers, got %d", c.Buffers))
	}
	if c.Advertise && c.RemoteAddr == "" {
		errs = append(errs, errors.New("advertising requires a remote address"))
	}
	if c.StateInterval <= 0 {
		errs = append(errs, fmt.Errorf("state interval must be positive, got %v", c.StateInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// PlayerConfig maps the settings onto a chime.PlayerConfig
func (c *Config) PlayerConfig() chime.PlayerConfig {
	vol := float32(c.MasterVolume)
	return chime.PlayerConfig{
		Driver:          c.Driver,
		DeviceName:      c.Device,
		MasterVolume:    &vol,
		MaxPendingTasks: c.MaxPendingTasks,
		Limiter:         c.Limiter,
		Output: output.Config{
			DeviceRate:         c.DeviceRate,
			RejectRateMismatch: c.RejectRateMismatch,
			PeriodFrames:       c.PeriodFrames,
			BufferFrames:       c.BufferFrames,
			Buffers:            c.Buffers,
		},
	}
}
