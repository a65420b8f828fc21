// ABOUTME: PulseAudio callback driver using jfreymuth/pulse
// ABOUTME: The playback stream pulls normalized floats straight from the renderer
package output

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/jfreymuth/pulse"
)

// pulseWatchInterval is how often the stream is checked for errors
const pulseWatchInterval = 100 * time.Millisecond

// Pulse plays through a PulseAudio (or pipewire-pulse) server
type Pulse struct {
	mu     sync.Mutex
	state  stateMachine
	client *pulse.Client
	stream *pulse.PlaybackStream
	pipe   *pipeline
	r      Renderer
	done   chan struct{}
	wg     sync.WaitGroup

	underflows atomic.Int64
}

// NewPulse creates a new PulseAudio driver
func NewPulse() *Pulse {
	return &Pulse{}
}

// Name returns "pulse"
func (p *Pulse) Name() string { return "pulse" }

// State returns the lifecycle state
func (p *Pulse) State() State { return p.state.get() }

// Underflows returns how many underflows the server reported
func (p *Pulse) Underflows() int64 { return p.underflows.Load() }

// Initialize connects to the server and starts the playback stream
func (p *Pulse) Initialize(r Renderer, cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.to(StateOpening); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	if err := p.open(r, cfg); err != nil {
		p.release()
		p.state.shutdown()
		return err
	}

	p.done = make(chan struct{})
	p.wg.Add(1)
	go p.watch()

	if err := p.state.to(StateRunning); err != nil {
		return err
	}
	log.Printf("Audio output initialized: %dHz, %d channels (pulse)", cfg.DeviceRate, audio.EngineChannels)
	return nil
}

func (p *Pulse) open(r Renderer, cfg Config) error {
	pipe, err := newPipeline(r, cfg)
	if err != nil {
		return err
	}
	p.pipe = pipe
	p.r = r

	client, err := pulse.NewClient(pulse.ClientApplicationName("chime"))
	if err != nil {
		return fmt.Errorf("failed to connect to pulse server: %w", err)
	}
	p.client = client

	opts := []pulse.PlaybackOption{
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(cfg.DeviceRate),
		pulse.PlaybackLatency(float64(cfg.BufferFrames) / float64(cfg.DeviceRate)),
	}
	if cfg.DeviceName != "" {
		sink, err := client.SinkByID(cfg.DeviceName)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDeviceNotFound, cfg.DeviceName, err)
		}
		opts = append(opts, pulse.PlaybackSink(sink))
	}

	stream, err := client.NewPlayback(pulse.Float32Reader(p.read), opts...)
	if err != nil {
		return fmt.Errorf("failed to create playback stream: %w", err)
	}
	p.stream = stream

	stream.Start()
	return nil
}

// read renders whole frames; the reader counts values, not frames
func (p *Pulse) read(buf []float32) (int, error) {
	if p.r.QuitRequested() {
		return 0, pulse.EndOfData
	}
	frames := len(buf) / audio.EngineChannels
	p.pipe.renderUnit(buf[:frames*audio.EngineChannels], frames)
	return frames * audio.EngineChannels, nil
}

// watch logs underflows and escalates stream errors
func (p *Pulse) watch() {
	defer p.wg.Done()

	ticker := time.NewTicker(pulseWatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}

		if p.stream.Underflow() {
			n := p.underflows.Add(1)
			log.Printf("Pulse stream underflow (%d total)", n)
		}
		if err := p.stream.Error(); err != nil {
			log.Printf("Pulse stream failed: %v", err)
			fatal(p.r, fmt.Sprintf("pulse stream error: %v", err))
			return
		}
		if p.r.QuitRequested() {
			return
		}
	}
}

// Deinitialize stops the stream and disconnects
func (p *Pulse) Deinitialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.to(StateClosing) != nil {
		return nil
	}
	if p.done != nil {
		close(p.done)
		p.wg.Wait()
		p.done = nil
	}
	p.release()
	return p.state.to(StateClosed)
}

// release closes the stream and client (must hold p.mu)
func (p *Pulse) release() {
	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
		p.stream = nil
	}
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	p.pipe = nil
}

// Devices lists sinks and sources known to the server
func (p *Pulse) Devices() ([]DeviceInfo, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("chime"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pulse server: %w", err)
	}
	defer client.Close()

	sinks, err := client.ListSinks()
	if err != nil {
		return nil, fmt.Errorf("failed to list sinks: %w", err)
	}
	sources, err := client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	list := make([]DeviceInfo, 0, len(sinks)+len(sources))
	for _, s := range sinks {
		list = append(list, DeviceInfo{SystemName: s.ID(), Description: s.Name(), IsOutput: true})
	}
	for _, s := range sources {
		list = append(list, DeviceInfo{SystemName: s.ID(), Description: s.Name(), IsInput: true})
	}
	return list, nil
}
