// ABOUTME: Render pipeline between the renderer and a device buffer
// ABOUTME: Calls MixSound directly or through a resampler and converts to device formats
package output

import (
	"fmt"
	"log"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/audio/resample"
)

// pipeline renders interleaved stereo at the device rate. It is owned by
// the single goroutine that drives the device.
type pipeline struct {
	r         Renderer
	resampler *resample.Resampler
	buf       []float32 // interleaved device-rate frames
	scratch   []float32
}

func newPipeline(r Renderer, cfg Config) (*pipeline, error) {
	p := &pipeline{r: r}

	if cfg.DeviceRate != cfg.SampleRate {
		if cfg.RejectRateMismatch {
			return nil, fmt.Errorf("%w: device %d Hz, engine %d Hz", ErrRateMismatch, cfg.DeviceRate, cfg.SampleRate)
		}
		log.Printf("Resampling %d Hz -> %d Hz for device", cfg.SampleRate, cfg.DeviceRate)
		p.resampler = resample.New(cfg.SampleRate, cfg.DeviceRate, audio.EngineChannels, cfg.PeriodFrames)
	}

	return p, nil
}

// resampling reports whether the device rate differs from the engine rate
func (p *pipeline) resampling() bool {
	return p.resampler != nil
}

// render fills p.buf with frames interleaved device-rate frames
func (p *pipeline) render(frames int) []float32 {
	n := frames * audio.EngineChannels
	if cap(p.buf) < n {
		p.buf = make([]float32, n)
	}
	out := p.buf[:n]

	if p.resampler == nil {
		p.mix(out)
		return out
	}

	p.resampler.Read(out, p.mix)
	return out
}

// mix renders a full interleaved block at the engine rate
func (p *pipeline) mix(block []float32) {
	frames := len(block) / audio.EngineChannels
	if cap(p.scratch) < frames*2 {
		p.scratch = make([]float32, frames*2)
	}
	p.r.MixSound(block, block[1:], audio.EngineChannels, frames, p.scratch[:frames*2])
}

// renderS16 renders frames frames as signed 16-bit little-endian into dst
func (p *pipeline) renderS16(dst []byte, frames int) {
	audio.PutS16LE(dst, p.render(frames))
}

// renderUnit renders frames frames as normalized floats into dst
func (p *pipeline) renderUnit(dst []float32, frames int) {
	src := p.render(frames)
	for i, v := range src {
		dst[i] = audio.FloatToUnit(v)
	}
}
