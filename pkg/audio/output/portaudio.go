//go:build portaudio

// ABOUTME: PortAudio callback driver
// ABOUTME: Cross-platform output; the stream callback renders float frames from the mixer
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudio drives a PortAudio output stream
type PortAudio struct {
	mu     sync.Mutex
	state  stateMachine
	stream *portaudio.Stream
	pipe   *pipeline
	r      Renderer
}

// NewPortAudio creates a new PortAudio driver
func NewPortAudio() Driver {
	return &PortAudio{}
}

// Name returns "portaudio"
func (p *PortAudio) Name() string { return "portaudio" }

// State returns the lifecycle state
func (p *PortAudio) State() State { return p.state.get() }

// Initialize opens the output stream and starts the callback
func (p *PortAudio) Initialize(r Renderer, cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.to(StateOpening); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	if err := portaudio.Initialize(); err != nil {
		p.state.shutdown()
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	if err := p.open(r, cfg); err != nil {
		portaudio.Terminate()
		p.state.shutdown()
		return err
	}

	if err := p.state.to(StateRunning); err != nil {
		return err
	}
	log.Printf("Audio output initialized: %dHz, %d channels, period %d frames (portaudio)",
		cfg.DeviceRate, audio.EngineChannels, cfg.PeriodFrames)
	return nil
}

func (p *PortAudio) open(r Renderer, cfg Config) error {
	dev, err := portaudioDevice(cfg.DeviceName)
	if err != nil {
		return err
	}

	pipe, err := newPipeline(r, cfg)
	if err != nil {
		return err
	}
	p.pipe = pipe
	p.r = r

	params := portaudio.LowLatencyParameters(nil, dev)
	params.Output.Channels = audio.EngineChannels
	params.SampleRate = float64(cfg.DeviceRate)
	params.FramesPerBuffer = cfg.PeriodFrames

	stream, err := portaudio.OpenStream(params, p.callback)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.stream = stream
	return nil
}

// callback receives an interleaved stereo buffer
func (p *PortAudio) callback(out []float32) {
	if p.r.QuitRequested() {
		clear(out)
		return
	}
	frames := len(out) / audio.EngineChannels
	p.pipe.renderUnit(out, frames)
}

func portaudioDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default output device: %w", err)
		}
		return dev, nil
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	for _, d := range devs {
		if d.Name == name && d.MaxOutputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
}

// Deinitialize stops the stream and terminates PortAudio
func (p *PortAudio) Deinitialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.to(StateClosing) != nil {
		return nil
	}

	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			log.Printf("Warning: stream stop error: %v", err)
		}
		if err := p.stream.Close(); err != nil {
			log.Printf("Warning: stream close error: %v", err)
		}
		p.stream = nil
	}
	p.pipe = nil

	if err := portaudio.Terminate(); err != nil {
		log.Printf("Warning: portaudio terminate error: %v", err)
	}
	return p.state.to(StateClosed)
}

// Devices lists every PortAudio device
func (p *PortAudio) Devices() ([]DeviceInfo, error) {
	if p.state.get() != StateRunning {
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
		}
		defer portaudio.Terminate()
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	list := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		desc := d.Name
		if d.HostApi != nil {
			desc = fmt.Sprintf("%s (%s)", d.Name, d.HostApi.Name)
		}
		list = append(list, DeviceInfo{
			SystemName:  d.Name,
			Description: desc,
			IsInput:     d.MaxInputChannels > 0,
			IsOutput:    d.MaxOutputChannels > 0,
		})
	}
	return list, nil
}
