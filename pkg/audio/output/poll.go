// ABOUTME: Polling-thread driver over a blocking write device
// ABOUTME: Renders into round-robin buffers on a locked OS thread and recovers device errors
package output

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chime-audio/chime/pkg/audio"
)

// Device is a blocking PCM sink in interleaved S16LE stereo. Write reports
// ErrWouldBlock, ErrUnderrun or ErrSuspended for recoverable conditions.
type Device interface {
	// Open opens the device and returns the rate it actually runs at; 0
	// means cfg.DeviceRate was accepted
	Open(cfg Config) (int, error)
	Write(buf []byte) error
	Prepare() error
	Resume() error
	Close() error
}

// DeviceLister is implemented by devices that can enumerate targets
type DeviceLister interface {
	Devices() ([]DeviceInfo, error)
}

// Poll runs a dedicated render goroutine that writes into a Device
type Poll struct {
	name string
	dev  Device

	mu    sync.Mutex
	state stateMachine
	cfg   Config
	r     Renderer
	pipe  *pipeline
	done  chan struct{}

	underruns atomic.Int64
}

// NewPoll creates a polling driver for dev
func NewPoll(name string, dev Device) *Poll {
	return &Poll{name: name, dev: dev}
}

// Name returns the driver name
func (p *Poll) Name() string { return p.name }

// State returns the lifecycle state
func (p *Poll) State() State { return p.state.get() }

// Underruns returns how many underruns were recovered
func (p *Poll) Underruns() int64 { return p.underruns.Load() }

// Initialize opens the device and starts the render goroutine
func (p *Poll) Initialize(r Renderer, cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.to(StateOpening); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	rate, err := p.dev.Open(cfg)
	if err != nil {
		p.state.shutdown()
		return fmt.Errorf("failed to open %s device: %w", p.name, err)
	}
	if rate > 0 && rate != cfg.DeviceRate {
		log.Printf("Device opened at %dHz instead of %dHz", rate, cfg.DeviceRate)
		cfg.DeviceRate = rate
	}

	pipe, err := newPipeline(r, cfg)
	if err != nil {
		if cerr := p.dev.Close(); cerr != nil {
			log.Printf("Warning: %s device close error: %v", p.name, cerr)
		}
		p.state.shutdown()
		return err
	}

	p.cfg = cfg
	p.r = r
	p.pipe = pipe
	p.done = make(chan struct{})

	if err := p.state.to(StateRunning); err != nil {
		return err
	}

	go p.run()

	log.Printf("Audio output initialized: %dHz, %d channels, %d x %d frames (%s)",
		cfg.DeviceRate, audio.EngineChannels, cfg.Buffers, cfg.PeriodFrames, p.name)
	return nil
}

// run is the render loop. It owns the device until it returns.
func (p *Poll) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	frames := p.cfg.PeriodFrames
	bufs := make([][]byte, p.cfg.Buffers)
	for i := range bufs {
		bufs[i] = make([]byte, frames*bytesPerFrame)
	}

	// Priming writes fill the device queue with silence
	for i := 0; i < p.cfg.PrimeWrites; i++ {
		silence := bufs[i%len(bufs)]
		clear(silence)
		if err := p.submit(silence); err != nil {
			p.fail(err)
			return
		}
	}

	next := 0
	for !p.r.QuitRequested() {
		buf := bufs[next]
		next = (next + 1) % len(bufs)

		p.pipe.renderS16(buf, frames)
		if err := p.submit(buf); err != nil {
			p.fail(err)
			return
		}
	}
}

// fail escalates an unrecoverable error unless the driver is closing
func (p *Poll) fail(err error) {
	if p.state.get() == StateClosing {
		return
	}
	log.Printf("Audio thread stopping: %v", err)
	fatal(p.r, err.Error())
}

// submit writes one buffer, recovering transient device errors. At most
// RecoverRetries underrun or suspend recoveries are attempted before the
// buffer is written; past that the device is treated as lost.
func (p *Poll) submit(buf []byte) error {
	recoveries := 0
	for !p.r.QuitRequested() {
		err := p.dev.Write(buf)
		if errors.Is(err, ErrUnderrun) || errors.Is(err, ErrSuspended) {
			if recoveries >= p.cfg.RecoverRetries {
				return fmt.Errorf("%s device did not recover after %d attempts: %w", p.name, recoveries, err)
			}
			if recoveries > 0 {
				time.Sleep(p.cfg.RecoverDelay)
			}
			recoveries++
		}

		switch {
		case err == nil:
			return nil

		case errors.Is(err, ErrWouldBlock):
			time.Sleep(p.cfg.WouldBlockDelay)

		case errors.Is(err, ErrUnderrun):
			n := p.underruns.Add(1)
			log.Printf("Audio underrun on %s (%d total), preparing device", p.name, n)
			if err := p.dev.Prepare(); err != nil {
				return fmt.Errorf("failed to recover from underrun: %w", err)
			}

		case errors.Is(err, ErrSuspended):
			if err := p.recoverSuspend(); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%s device write failed: %w", p.name, err)
		}
	}
	return nil
}

// recoverSuspend resumes a suspended device, falling back to Prepare
func (p *Poll) recoverSuspend() error {
	if err := p.state.to(StateSuspended); err != nil {
		return err
	}
	log.Printf("Audio device %s suspended, resuming", p.name)

	var err error
	for i := 0; i < p.cfg.ResumeRetries; i++ {
		err = p.dev.Resume()
		if !errors.Is(err, ErrWouldBlock) {
			break
		}
		time.Sleep(p.cfg.ResumeDelay)
	}
	if err != nil {
		if perr := p.dev.Prepare(); perr != nil {
			return fmt.Errorf("failed to recover from suspend: %w", perr)
		}
	}

	return p.state.to(StateRunning)
}

// Deinitialize stops the render goroutine and closes the device
func (p *Poll) Deinitialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.to(StateClosing) != nil {
		return nil
	}

	p.r.RequestQuit()
	<-p.done

	err := p.dev.Close()
	if serr := p.state.to(StateClosed); serr != nil {
		return serr
	}
	if err != nil {
		return fmt.Errorf("failed to close %s device: %w", p.name, err)
	}
	return nil
}

// Devices lists targets when the device supports enumeration
func (p *Poll) Devices() ([]DeviceInfo, error) {
	if l, ok := p.dev.(DeviceLister); ok {
		return l.Devices()
	}
	return nil, nil
}
