// ABOUTME: Oto-based worklet driver
// ABOUTME: oto pulls a reader that renders one quantum at a time into planar arrays
package output

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// otoWatchInterval is how often the context is checked for errors
const otoWatchInterval = 100 * time.Millisecond

// oto allows only one context per process, so it outlives drivers
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate int
)

// Oto plays through ebitengine/oto
type Oto struct {
	mu     sync.Mutex
	state  stateMachine
	player *oto.Player
	reader *workletReader
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewOto creates a new oto driver
func NewOto() *Oto {
	return &Oto{}
}

// Name returns "oto"
func (o *Oto) Name() string { return "oto" }

// State returns the lifecycle state
func (o *Oto) State() State { return o.state.get() }

// Initialize creates (or reuses) the oto context and starts the player
func (o *Oto) Initialize(r Renderer, cfg Config) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.state.to(StateOpening); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	ctx, ready, err := sharedOtoContext(cfg)
	if err != nil {
		o.state.shutdown()
		return err
	}

	reader, err := newWorkletReader(r, cfg)
	if err != nil {
		o.state.shutdown()
		return err
	}
	o.reader = reader

	o.done = make(chan struct{})
	o.wg.Add(1)
	go o.watch(ctx, ready, r)

	o.player = ctx.NewPlayer(reader)
	o.player.Play()

	log.Printf("Audio output initialized: %dHz, %d channels, quantum %d frames (oto)",
		cfg.DeviceRate, audio.EngineChannels, cfg.Quantum)
	return nil
}

// sharedOtoContext returns the process-wide context, creating it on first use
func sharedOtoContext(cfg Config) (*oto.Context, chan struct{}, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoRate != cfg.DeviceRate {
			log.Printf("Warning: oto context already running at %dHz, ignoring requested %dHz", otoRate, cfg.DeviceRate)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		ready := make(chan struct{})
		close(ready)
		return otoCtx, ready, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.DeviceRate,
		ChannelCount: audio.EngineChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(cfg.BufferFrames) * time.Second / time.Duration(cfg.DeviceRate),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	otoCtx = ctx
	otoRate = cfg.DeviceRate
	return ctx, ready, nil
}

// watch moves to running once oto is ready and escalates context errors
func (o *Oto) watch(ctx *oto.Context, ready chan struct{}, r Renderer) {
	defer o.wg.Done()

	select {
	case <-ready:
	case <-o.done:
		return
	}
	if err := waitForGesture(ctx, &o.state, o.done); err != nil {
		return
	}
	if err := o.state.to(StateRunning); err != nil {
		return
	}

	ticker := time.NewTicker(otoWatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.done:
			return
		case <-ticker.C:
		}
		if err := ctx.Err(); err != nil {
			log.Printf("Oto context failed: %v", err)
			fatal(r, fmt.Sprintf("oto context error: %v", err))
			return
		}
	}
}

// Deinitialize stops the player and suspends the shared context
func (o *Oto) Deinitialize() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.to(StateClosing) != nil {
		return nil
	}
	close(o.done)
	o.wg.Wait()

	if o.player != nil {
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}

	otoMu.Lock()
	if otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	otoMu.Unlock()

	return o.state.to(StateClosed)
}

// Devices reports the single system default output oto plays to
func (o *Oto) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{SystemName: "default", Description: "System default output", IsOutput: true}}, nil
}

// workletReader renders one quantum per step into planar left and right
// arrays and serves them to oto as interleaved float32 bytes
type workletReader struct {
	r       Renderer
	quantum int
	left    []float32
	right   []float32
	scratch []float32
	pipe    *pipeline
}

func newWorkletReader(r Renderer, cfg Config) (*workletReader, error) {
	pipe, err := newPipeline(r, cfg)
	if err != nil {
		return nil, err
	}
	return &workletReader{
		r:       r,
		quantum: cfg.Quantum,
		left:    make([]float32, cfg.Quantum),
		right:   make([]float32, cfg.Quantum),
		scratch: make([]float32, cfg.Quantum*2),
		pipe:    pipe,
	}, nil
}

// Read fills p with whole frames; silence once quit is requested
func (w *workletReader) Read(p []byte) (int, error) {
	const frameBytes = 4 * audio.EngineChannels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	out := p[:frames*frameBytes]

	if w.r.QuitRequested() {
		clear(out)
		return len(out), nil
	}

	for off := 0; off < frames; off += w.quantum {
		n := min(w.quantum, frames-off)
		w.renderQuantum(out[off*frameBytes:(off+n)*frameBytes], n)
	}
	return len(out), nil
}

func (w *workletReader) renderQuantum(dst []byte, frames int) {
	if w.pipe.resampling() {
		audio.PutF32LE(dst, w.pipe.render(frames))
		return
	}

	left, right := w.left[:frames], w.right[:frames]
	w.r.MixSound(left, right, 1, frames, w.scratch)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint32(dst[i*8:], math.Float32bits(audio.FloatToUnit(left[i])))
		binary.LittleEndian.PutUint32(dst[i*8+4:], math.Float32bits(audio.FloatToUnit(right[i])))
	}
}
