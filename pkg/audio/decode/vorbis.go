// ABOUTME: Ogg Vorbis loader and streaming decoder
// ABOUTME: The streaming codec kept compressed in memory and decoded on the mixer goroutine
package decode

import (
	"bytes"
	"fmt"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/mixer"
	"github.com/jfreymuth/oggvorbis"
)

// LoadVorbis decodes an Ogg Vorbis file. With opts.Stream and a 44100 Hz
// mono or stereo source the blob stays compressed.
func LoadVorbis(name string, data []byte, opts Options) (*mixer.Resource, error) {
	if opts.Stream {
		r, err := oggvorbis.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("invalid codec for Vorbis loader: %w", err)
		}
		ch := r.Channels()
		if r.SampleRate() == audio.EngineSampleRate && (ch == 1 || ch == 2) {
			return mixer.NewStreamResource(name, data, r.Length(), &vorbisStream{r: r, channels: ch}), nil
		}
	}

	values, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid codec for Vorbis loader: %w", err)
	}

	samples := make([]int16, len(values))
	for i, v := range values {
		samples[i] = audio.FloatToInt16(v * audio.MaxSample16)
	}
	return fromPCM(name, samples, format.SampleRate, format.Channels)
}

// vorbisStream adapts oggvorbis.Reader to mixer.StreamDecoder
type vorbisStream struct {
	r        *oggvorbis.Reader
	channels int
	mono     []float32
}

func (s *vorbisStream) Seek(frame int64) error {
	if s.r.Position() == frame {
		return nil
	}
	if err := s.r.SetPosition(frame); err != nil {
		return fmt.Errorf("failed to seek Vorbis: %w", err)
	}
	return nil
}

func (s *vorbisStream) Read(dst []float32) (int, error) {
	frames := len(dst) / 2

	if s.channels == 2 {
		n, err := s.r.Read(dst[:frames*2])
		for i := 0; i < n; i++ {
			dst[i] *= audio.MaxSample16
		}
		return n / 2, err
	}

	if cap(s.mono) < frames {
		s.mono = make([]float32, frames)
	}
	mono := s.mono[:frames]
	n, err := s.r.Read(mono)
	for i := 0; i < n; i++ {
		v := mono[i] * audio.MaxSample16
		dst[i*2] = v
		dst[i*2+1] = v
	}
	return n, err
}
