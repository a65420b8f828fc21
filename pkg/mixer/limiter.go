// ABOUTME: Optional peak limiter for the final mix
// ABOUTME: Follows the stereo peak level and soft clips near full scale
package mixer

import "github.com/chime-audio/chime/pkg/audio"

const softClipKnee = 0.97

type limiter struct {
	attack  float32
	release float32
	level   float32
}

func newLimiter(sampleRate int) *limiter {
	return &limiter{
		attack:  1 / (float32(sampleRate) * 0.005),
		release: 1 / (float32(sampleRate) * 0.2),
		level:   1,
	}
}

func (l *limiter) process(outL, outR []float32, stride, frames int) {
	const scale = audio.MaxSample16
	for i := 0; i < frames; i++ {
		left := outL[i*stride] / scale
		right := outR[i*stride] / scale

		peak := max(abs32(left), abs32(right), 1)
		if peak > l.level {
			l.level += (peak - l.level) * l.attack
		} else {
			l.level += (peak - l.level) * l.release
		}

		gain := float32(1)
		if l.level > 1 {
			gain = 1 / l.level
		}

		outL[i*stride] = softClip(left*gain) * scale
		outR[i*stride] = softClip(right*gain) * scale
	}
}

// softClip leaves samples below the knee untouched and bends the rest
// towards full scale
func softClip(d float32) float32 {
	const a = softClipKnee
	const b = 1 - a
	if d > a {
		d -= a
		return (b*d)/(b+d) + a
	}
	if d < -a {
		d = -d - a
		return -((b*d)/(b+d) + a)
	}
	return d
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
