// ABOUTME: Sine tone generator
// ABOUTME: Builds test and notification sounds without a file
package decode

import (
	"math"
	"time"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/mixer"
)

// Tone returns a stereo sine resource at the engine rate. amplitude is
// 0..1 of full scale.
func Tone(name string, frequency float64, duration time.Duration, amplitude float64) *mixer.Resource {
	frames := int(duration.Seconds() * audio.EngineSampleRate)
	if frames < 0 {
		frames = 0
	}
	amplitude = math.Max(0, math.Min(1, amplitude))

	samples := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		t := float64(i) / audio.EngineSampleRate
		v := int16(math.Sin(2*math.Pi*frequency*t) * audio.MaxSample16 * amplitude)
		samples[i*2] = v
		samples[i*2+1] = v
	}

	return mixer.NewPCMResource(name, samples, 2)
}
