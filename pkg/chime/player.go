// ABOUTME: High-level Player API for chime
// ABOUTME: Owns a mixer and an output driver and forwards the sound API
package chime

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/audio/output"
	"github.com/chime-audio/chime/pkg/mixer"
)

// healthInterval is how often a running player checks the mixer error state
const healthInterval = 100 * time.Millisecond

// ErrAlreadyInitialized is returned by Initialize on a running player
var ErrAlreadyInitialized = errors.New("player already initialized")

// PlayerConfig holds player configuration
type PlayerConfig struct {
	// Driver is the backend name (malgo, pulse, pipe, oss, oto, portaudio).
	// Empty selects malgo.
	Driver string

	// Backend overrides Driver with a ready driver instance
	Backend output.Driver

	// DeviceName selects an output device; empty uses the system default
	DeviceName string

	// SampleRate is the engine rate (default: 44100)
	SampleRate int

	// MasterVolume is the initial master volume 0..1 (nil: 0.7)
	MasterVolume *float32

	// MaxPendingTasks bounds queued API calls (0 = default, negative = unbounded)
	MaxPendingTasks int

	// Limiter enables the output limiter
	Limiter bool

	// Output tunes buffering and recovery of the driver
	Output output.Config

	// OnError is called once when the driver reports a fatal error
	OnError func(error)
}

// Player plays sounds through one output driver
type Player struct {
	config PlayerConfig
	mixer  *mixer.Mixer
	driver output.Driver

	mu      sync.Mutex
	running bool
	used    bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewPlayer creates a player with the given configuration. The device is
// not opened until Initialize.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if config.SampleRate == 0 {
		config.SampleRate = audio.EngineSampleRate
	}

	driver := config.Backend
	if driver == nil {
		d, err := output.NewDriver(config.Driver)
		if err != nil {
			return nil, err
		}
		driver = d
	}
	config.Driver = driver.Name()

	m := mixer.New(mixer.Config{
		SampleRate:      config.SampleRate,
		MasterVolume:    config.MasterVolume,
		MaxPendingTasks: config.MaxPendingTasks,
		Limiter:         config.Limiter,
	})

	return &Player{
		config: config,
		mixer:  m,
		driver: driver,
	}, nil
}

// Initialize opens the configured device and starts playback
func (p *Player) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyInitialized
	}
	if p.used {
		p.mixer.Reset()
	}
	p.used = true

	cfg := p.config.Output
	cfg.SampleRate = p.mixer.SampleRate()
	if p.config.DeviceName != "" {
		cfg.DeviceName = p.config.DeviceName
	}

	if err := p.driver.Initialize(p.mixer, cfg); err != nil {
		p.mixer.SetError(err.Error())
		p.mixer.RequestQuit()
		err = fmt.Errorf("failed to initialize %s driver: %w", p.driver.Name(), err)
		p.notifyError(err)
		return err
	}

	p.running = true
	p.done = make(chan struct{})
	p.wg.Add(1)
	go p.watchHealth()

	log.Printf("Player initialized with %s driver", p.driver.Name())
	return nil
}

// watchHealth reports the first fatal driver error
func (p *Player) watchHealth() {
	defer p.wg.Done()

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}
		if !p.mixer.IsOk() {
			p.notifyError(errors.New(p.mixer.ErrorDescription()))
			return
		}
	}
}

// Deinitialize stops playback, closes the device and force-stops every
// voice so resources report idle
func (p *Player) Deinitialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false

	p.mixer.RequestQuit()
	close(p.done)
	p.wg.Wait()

	err := p.driver.Deinitialize()
	p.mixer.ReleaseAll()
	if err != nil {
		return fmt.Errorf("failed to deinitialize %s driver: %w", p.driver.Name(), err)
	}
	return nil
}

// Close is Deinitialize for use with defer
func (p *Player) Close() error {
	return p.Deinitialize()
}

// GetDeviceList lists the devices the driver can see
func (p *Player) GetDeviceList() ([]output.DeviceInfo, error) {
	return p.driver.Devices()
}

// IsOk reports whether no fatal error has occurred
func (p *Player) IsOk() bool {
	return p.mixer.IsOk()
}

// ErrorDescription returns the last fatal error, empty when ok
func (p *Player) ErrorDescription() string {
	return p.mixer.ErrorDescription()
}

// Stats returns mixer counters
func (p *Player) Stats() mixer.Stats {
	return p.mixer.Stats()
}

// Mixer exposes the underlying mixer
func (p *Player) Mixer() *mixer.Mixer {
	return p.mixer
}

// DriverName returns the name of the active driver
func (p *Player) DriverName() string {
	return p.driver.Name()
}

// DriverState returns the driver lifecycle state
func (p *Player) DriverState() output.State {
	return p.driver.State()
}

// DeviceName returns the configured device, empty for the default
func (p *Player) DeviceName() string {
	return p.config.DeviceName
}

func (p *Player) StartSound(r *mixer.Resource, volume float32) mixer.Handle {
	return p.mixer.StartSound(r, volume)
}

func (p *Player) StartSoundAtPosition(r *mixer.Resource, volume float32, pos mixer.Vec3) mixer.Handle {
	return p.mixer.StartSoundAtPosition(r, volume, pos)
}

func (p *Player) StopSound(r *mixer.Resource) {
	p.mixer.StopSound(r)
}

func (p *Player) StopHandle(h mixer.Handle) {
	p.mixer.StopHandle(h)
}

func (p *Player) SetSoundListenerLocation(loc mixer.Transform) {
	p.mixer.SetSoundListenerLocation(loc)
}

func (p *Player) SetSoundSourcePosition(r *mixer.Resource, pos mixer.Vec3) {
	p.mixer.SetSoundSourcePosition(r, pos)
}

func (p *Player) SetHandlePosition(h mixer.Handle, pos mixer.Vec3) {
	p.mixer.SetHandlePosition(h, pos)
}

func (p *Player) SetMasterVolume(v float32) {
	p.mixer.SetMasterVolume(v)
}

func (p *Player) MasterVolume() float32 {
	return p.mixer.MasterVolume()
}

// notifyError calls the OnError callback if set
func (p *Player) notifyError(err error) {
	if p.config.OnError != nil {
		p.config.OnError(err)
	} else {
		log.Printf("Player error: %v", err)
	}
}
