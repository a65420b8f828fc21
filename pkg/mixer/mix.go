// ABOUTME: The MixSound render pass
// ABOUTME: Drains tasks, accumulates every voice in float and applies master volume
package mixer

// MixSound renders frames stereo frames into outL and outR, which are
// indexed with the given stride (2 with outR = outL[1:] for interleaved
// output, 1 for planar arrays). Samples are floats in 16-bit scale; the
// caller converts and clamps for the device. scratch must hold at least
// 2*frames floats or be nil, in which case an internal buffer is used.
//
// MixSound must only be called from one goroutine at a time.
func (m *Mixer) MixSound(outL, outR []float32, stride, frames int, scratch []float32) {
	if frames <= 0 {
		return
	}
	if stride <= 0 {
		stride = 1
	}

	m.drain()

	for i := 0; i < frames; i++ {
		outL[i*stride] = 0
		outR[i*stride] = 0
	}

	if len(scratch) < frames*2 {
		if cap(m.scratch) < frames*2 {
			m.scratch = make([]float32, frames*2)
		}
		scratch = m.scratch[:frames*2]
	} else {
		scratch = scratch[:frames*2]
	}

	for i := 0; i < len(m.voices); i++ {
		v := &m.voices[i]
		n := v.resource.render(v.offset, scratch)

		if v.is3D {
			gl := v.volume * m.listener.gain(0, v.location.Position)
			gr := v.volume * m.listener.gain(1, v.location.Position)
			for f := 0; f < n; f++ {
				mono := (scratch[f*2] + scratch[f*2+1]) * 0.5
				outL[f*stride] += mono * gl
				outR[f*stride] += mono * gr
			}
		} else {
			vol := v.volume
			for f := 0; f < n; f++ {
				outL[f*stride] += scratch[f*2] * vol
				outR[f*stride] += scratch[f*2+1] * vol
			}
		}

		v.offset += int64(n)
		dur := v.resource.Duration()
		if n < frames || (dur > 0 && v.offset >= dur) {
			m.releaseVoice(i)
			i--
		}
	}

	master := m.MasterVolume()
	for i := 0; i < frames; i++ {
		outL[i*stride] *= master
		outR[i*stride] *= master
	}

	if m.limiter != nil {
		m.limiter.process(outL, outR, stride, frames)
	}

	m.activeVoices.Store(int32(len(m.voices)))
	m.mixedFrames.Add(int64(frames))
}

// MixInterleaved renders frames stereo frames into an interleaved buffer
func (m *Mixer) MixInterleaved(buf []float32, frames int) {
	if frames <= 0 {
		return
	}
	m.MixSound(buf, buf[1:], 2, frames, nil)
}
