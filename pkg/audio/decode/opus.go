// ABOUTME: Opus packet decoder and loader
// ABOUTME: Decodes Opus packets to int16 samples for uploaded sounds
package decode

import (
	"fmt"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/mixer"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrame is the largest frame in samples per channel (120 ms at 48 kHz)
const maxOpusFrame = 5760

// OpusDecoder decodes Opus audio
type OpusDecoder struct {
	decoder *opus.Decoder
	format  audio.Format
	pcm     []int16
}

// NewOpus creates a new Opus decoder
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder: dec,
		format:  format,
		pcm:     make([]int16, maxOpusFrame*format.Channels),
	}, nil
}

// Decode converts one Opus packet to interleaved int16 samples
func (d *OpusDecoder) Decode(data []byte) ([]int16, error) {
	n, err := d.decoder.Decode(data, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	out := make([]int16, n*d.format.Channels)
	copy(out, d.pcm)
	return out, nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}

// LoadOpusPackets decodes a sequence of Opus packets into a raw resource
func LoadOpusPackets(name string, packets [][]byte, rate, channels int) (*mixer.Resource, error) {
	dec, err := NewOpus(audio.Format{Codec: "opus", SampleRate: rate, Channels: channels, BitDepth: 16})
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var samples []int16
	for i, pkt := range packets {
		pcm, err := dec.Decode(pkt)
		if err != nil {
			return nil, fmt.Errorf("failed to decode packet %d: %w", i, err)
		}
		samples = append(samples, pcm...)
	}

	return fromPCM(name, samples, rate, channels)
}
