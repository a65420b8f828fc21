// ABOUTME: Audio backend driver interface definition
// ABOUTME: Common contract, configuration and errors shared by every playback backend
package output

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/chime-audio/chime/pkg/audio"
)

var (
	// ErrWouldBlock means the device cannot accept data yet; retry shortly
	ErrWouldBlock = errors.New("device would block")
	// ErrUnderrun means the device ran dry and must be prepared again
	ErrUnderrun = errors.New("device underrun")
	// ErrSuspended means the device was suspended and must be resumed
	ErrSuspended = errors.New("device suspended")
	// ErrNoBackend means no usable audio backend was found on this system
	ErrNoBackend = errors.New("no audio backend available")
	// ErrRateMismatch means the device rate differs from the engine rate
	// and resampling was disabled
	ErrRateMismatch = errors.New("device sample rate does not match engine rate")
	// ErrNotInitialized means the driver has no open device
	ErrNotInitialized = errors.New("driver not initialized")
	// ErrDeviceNotFound means the configured device name matched nothing
	ErrDeviceNotFound = errors.New("audio device not found")
)

// Renderer produces the audio a driver plays. *mixer.Mixer satisfies it.
type Renderer interface {
	// MixSound renders frames stereo frames, see mixer.Mixer.MixSound
	MixSound(outL, outR []float32, stride, frames int, scratch []float32)
	// SetError records a fatal error description
	SetError(desc string)
	// QuitRequested reports whether the driver should stop rendering
	QuitRequested() bool
	// RequestQuit asks every rendering loop to stop
	RequestQuit()
}

// Driver is an audio backend that pulls audio from a Renderer
type Driver interface {
	// Name returns the registry name of the driver
	Name() string

	// Initialize opens the device and starts pulling audio from r
	Initialize(r Renderer, cfg Config) error

	// Deinitialize stops playback and releases the device
	Deinitialize() error

	// Devices lists the devices this backend can see
	Devices() ([]DeviceInfo, error)

	// State returns the current lifecycle state
	State() State
}

// DeviceInfo describes one enumerable device
type DeviceInfo struct {
	SystemName  string
	Description string
	IsInput     bool
	IsOutput    bool
}

// Config holds driver settings. Zero fields take defaults.
type Config struct {
	// DeviceName selects a device by system name; empty means default
	DeviceName string

	// SampleRate is the rate the renderer produces
	SampleRate int
	// DeviceRate is the rate to open the device at; 0 means SampleRate
	DeviceRate int
	// RejectRateMismatch fails initialization instead of resampling
	RejectRateMismatch bool

	PeriodFrames    int
	BufferFrames    int
	Buffers         int
	PrimeWrites     int
	Quantum         int
	ResumeRetries   int
	ResumeDelay     time.Duration
	WouldBlockDelay time.Duration

	// RecoverRetries bounds consecutive underrun or suspend recoveries for
	// one buffer before the error becomes fatal
	RecoverRetries int
	RecoverDelay   time.Duration
}

// Defaults
const (
	DefaultPeriodFrames    = 441  // 10 ms at 44100 Hz
	DefaultBufferFrames    = 2205 // 50 ms at 44100 Hz
	DefaultBuffers         = 3
	DefaultPrimeWrites     = 3
	DefaultQuantum         = 128
	DefaultResumeRetries   = 5
	DefaultResumeDelay     = time.Second
	DefaultWouldBlockDelay = time.Millisecond
	DefaultRecoverRetries  = 5
	DefaultRecoverDelay    = 10 * time.Millisecond
)

// withDefaults returns a copy of cfg with zero fields filled in
func (cfg Config) withDefaults() Config {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.EngineSampleRate
	}
	if cfg.DeviceRate <= 0 {
		cfg.DeviceRate = cfg.SampleRate
	}
	if cfg.PeriodFrames <= 0 {
		cfg.PeriodFrames = DefaultPeriodFrames
	}
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = DefaultBufferFrames
	}
	if cfg.BufferFrames < cfg.PeriodFrames {
		cfg.BufferFrames = cfg.PeriodFrames
	}
	if cfg.Buffers <= 0 {
		cfg.Buffers = DefaultBuffers
	}
	if cfg.PrimeWrites < 0 {
		cfg.PrimeWrites = 0
	} else if cfg.PrimeWrites == 0 {
		cfg.PrimeWrites = DefaultPrimeWrites
	}
	if cfg.Quantum <= 0 {
		cfg.Quantum = DefaultQuantum
	}
	if cfg.ResumeRetries <= 0 {
		cfg.ResumeRetries = DefaultResumeRetries
	}
	if cfg.ResumeDelay <= 0 {
		cfg.ResumeDelay = DefaultResumeDelay
	}
	if cfg.WouldBlockDelay <= 0 {
		cfg.WouldBlockDelay = DefaultWouldBlockDelay
	}
	if cfg.RecoverRetries <= 0 {
		cfg.RecoverRetries = DefaultRecoverRetries
	}
	if cfg.RecoverDelay <= 0 {
		cfg.RecoverDelay = DefaultRecoverDelay
	}
	return cfg
}

var drivers = map[string]func() Driver{
	"malgo":     func() Driver { return NewMalgo() },
	"pulse":     func() Driver { return NewPulse() },
	"pipe":      func() Driver { return NewPoll("pipe", NewPipeDevice()) },
	"oss":       func() Driver { return NewPoll("oss", NewOSSDevice()) },
	"oto":       func() Driver { return NewOto() },
	"portaudio": func() Driver { return NewPortAudio() },
}

// DefaultDriver is used when no driver name is configured
const DefaultDriver = "malgo"

// NewDriver creates a driver by registry name
func NewDriver(name string) (Driver, error) {
	if name == "" {
		name = DefaultDriver
	}
	ctor, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown audio driver: %q", name)
	}
	return ctor(), nil
}

// Drivers returns the registered driver names in sorted order
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fatal reports an unrecoverable driver error through the renderer
func fatal(r Renderer, desc string) {
	r.SetError(desc)
	r.RequestQuit()
}
