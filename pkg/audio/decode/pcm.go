// ABOUTME: Raw PCM decoder and loader
// ABOUTME: Decodes 8, 16, 24 and 32-bit little-endian PCM to int16 samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/mixer"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	bitDepth int
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	switch format.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 8, 16, 24, 32)", format.BitDepth)
	}

	return &PCMDecoder{
		bitDepth: format.BitDepth,
	}, nil
}

// Decode converts PCM bytes to int16 samples
func (d *PCMDecoder) Decode(data []byte) ([]int16, error) {
	switch d.bitDepth {
	case 8:
		samples := make([]int16, len(data))
		for i, b := range data {
			samples[i] = audio.SampleToInt16(int(b), 8)
		}
		return samples, nil

	case 24:
		numSamples := len(data) / 3
		samples := make([]int16, numSamples)
		for i := 0; i < numSamples; i++ {
			b := [3]byte{data[i*3], data[i*3+1], data[i*3+2]}
			samples[i] = audio.SampleToInt16(int(audio.SampleFrom24Bit(b)), 24)
		}
		return samples, nil

	case 32:
		numSamples := len(data) / 4
		samples := make([]int16, numSamples)
		for i := 0; i < numSamples; i++ {
			v := int32(binary.LittleEndian.Uint32(data[i*4:]))
			samples[i] = audio.SampleToInt16(int(v), 32)
		}
		return samples, nil

	default:
		numSamples := len(data) / 2
		samples := make([]int16, numSamples)
		for i := 0; i < numSamples; i++ {
			samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
		return samples, nil
	}
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}

// LoadPCM builds a resource from headerless PCM bytes
func LoadPCM(name string, data []byte, format audio.Format) (*mixer.Resource, error) {
	if format.SampleRate == 0 {
		format.SampleRate = audio.EngineSampleRate
	}
	if format.Channels == 0 {
		format.Channels = audio.EngineChannels
	}
	if format.BitDepth == 0 {
		format.BitDepth = 16
	}

	dec, err := NewPCM(format)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	samples, err := dec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode PCM: %w", err)
	}
	return fromPCM(name, samples, format.SampleRate, format.Channels)
}
