// ABOUTME: MP3 loader and streaming decoder
// ABOUTME: Unpacks MP3 to PCM or keeps it compressed behind a seekable go-mp3 decoder
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/mixer"
	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit stereo
const mp3BytesPerFrame = 4

// LoadMP3 decodes an MP3 file. With opts.Stream and a 44100 Hz source the
// file stays compressed and is decoded while mixing.
func LoadMP3(name string, data []byte, opts Options) (*mixer.Resource, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid codec for MP3 loader: %w", err)
	}

	if opts.Stream && dec.SampleRate() == audio.EngineSampleRate {
		frames := dec.Length() / mp3BytesPerFrame
		if frames < 0 {
			frames = 0
		}
		return mixer.NewStreamResource(name, data, frames, &mp3Stream{dec: dec}), nil
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return fromPCM(name, samples, dec.SampleRate(), 2)
}

// mp3Stream adapts go-mp3 to mixer.StreamDecoder
type mp3Stream struct {
	dec *mp3.Decoder
	buf []byte
}

func (s *mp3Stream) Seek(frame int64) error {
	if _, err := s.dec.Seek(frame*mp3BytesPerFrame, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek MP3: %w", err)
	}
	return nil
}

func (s *mp3Stream) Read(dst []float32) (int, error) {
	need := len(dst) / 2 * mp3BytesPerFrame
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	n, err := io.ReadFull(s.dec, buf)
	frames := n / mp3BytesPerFrame
	for i := 0; i < frames*2; i++ {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return frames, err
}
