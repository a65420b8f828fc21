// ABOUTME: Malgo-based callback driver
// ABOUTME: Uses miniaudio via malgo; the device callback renders the mixer period by period
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/gen2brain/malgo"
)

// bytesPerFrame for interleaved stereo S16
const bytesPerFrame = 2 * audio.EngineChannels

// Malgo drives a miniaudio playback device
type Malgo struct {
	mu       sync.Mutex
	state    stateMachine
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	pipe     *pipeline
	r        Renderer
	cfg      Config
}

// NewMalgo creates a new malgo driver
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Name returns "malgo"
func (m *Malgo) Name() string { return "malgo" }

// State returns the lifecycle state
func (m *Malgo) State() State { return m.state.get() }

// Initialize opens the configured playback device and starts the callback
func (m *Malgo) Initialize(r Renderer, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.state.to(StateOpening); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	if err := m.open(r, cfg); err != nil {
		m.release()
		m.state.shutdown()
		return err
	}

	if err := m.state.to(StateRunning); err != nil {
		return err
	}

	log.Printf("Audio output initialized: %dHz, %d channels, period %d frames (malgo/%s)",
		cfg.DeviceRate, audio.EngineChannels, cfg.PeriodFrames, formatName(malgo.FormatS16))
	return nil
}

func (m *Malgo) open(r Renderer, cfg Config) error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoCtx = ctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = audio.EngineChannels
	deviceConfig.SampleRate = uint32(cfg.DeviceRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.PeriodFrames)
	deviceConfig.Periods = uint32(cfg.Buffers)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.DeviceName != "" {
		info, err := findMalgoDevice(ctx, cfg.DeviceName)
		if err != nil {
			return err
		}
		deviceConfig.Playback.DeviceID = info.ID.Pointer()
	}

	m.r = r
	m.cfg = cfg

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pOutputSample, frameCount)
		},
		Stop: m.stopCallback,
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	m.device = device

	// miniaudio may settle on another rate than requested
	if actual := int(device.SampleRate()); actual > 0 && actual != cfg.DeviceRate {
		log.Printf("Device opened at %dHz instead of %dHz", actual, cfg.DeviceRate)
		cfg.DeviceRate = actual
		m.cfg = cfg
	}

	pipe, err := newPipeline(r, cfg)
	if err != nil {
		return err
	}
	m.pipe = pipe

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(out []byte, frameCount uint32) {
	frames := int(frameCount)

	if m.r.QuitRequested() || m.pipe == nil {
		clear(out)
		return
	}

	if len(out) < frames*bytesPerFrame {
		clear(out)
		fatal(m.r, fmt.Sprintf("output buffer holds %d bytes, device asked for %d frames", len(out), frames))
		return
	}

	period := m.cfg.PeriodFrames
	for off := 0; off < frames; off += period {
		n := min(period, frames-off)
		m.pipe.renderS16(out[off*bytesPerFrame:(off+n)*bytesPerFrame], n)
	}
}

// stopCallback fires when miniaudio stops the device. While running this
// means the device went away.
func (m *Malgo) stopCallback() {
	if m.state.get() != StateRunning {
		return
	}
	log.Printf("Audio device stopped unexpectedly")
	fatal(m.r, "audio device lost")
}

// Deinitialize stops the device and frees the context
func (m *Malgo) Deinitialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.to(StateClosing) != nil {
		return nil
	}
	m.release()
	return m.state.to(StateClosed)
}

// release stops and frees everything (must hold m.mu)
func (m *Malgo) release() {
	if m.device != nil {
		if m.device.IsStarted() {
			if err := m.device.Stop(); err != nil {
				log.Printf("Warning: device stop error: %v", err)
			}
		}
		m.device.Uninit()
		m.device = nil
	}

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	m.pipe = nil
}

// Devices lists playback and capture devices
func (m *Malgo) Devices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	var list []DeviceInfo
	for _, kind := range []malgo.DeviceType{malgo.Playback, malgo.Capture} {
		infos, err := ctx.Context.Devices(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list devices: %w", err)
		}
		for _, info := range infos {
			desc := info.Name()
			if info.IsDefault != 0 {
				desc += " (default)"
			}
			list = append(list, DeviceInfo{
				SystemName:  info.Name(),
				Description: desc,
				IsInput:     kind == malgo.Capture,
				IsOutput:    kind == malgo.Playback,
			})
		}
	}
	return list, nil
}

func findMalgoDevice(ctx *malgo.AllocatedContext, name string) (*malgo.DeviceInfo, error) {
	infos, err := ctx.Context.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	for i := range infos {
		if infos[i].Name() == name {
			return &infos[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
