// ABOUTME: Opus audio encoder
// ABOUTME: Encodes int16 samples to Opus packets
package encode

import (
	"fmt"

	"github.com/chime-audio/chime/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusPacket is the recommended upper bound for one encoded packet
const maxOpusPacket = 4000

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int
	data       []byte
}

// NewOpus creates a new Opus encoder
func NewOpus(format audio.Format) (*OpusEncoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: format.SampleRate,
		channels:   format.Channels,
		frameSize:  format.SampleRate / 50, // 20ms frame
		data:       make([]byte, maxOpusPacket),
	}, nil
}

// FrameSize returns samples per channel in one packet
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// Encode converts exactly one frame of int16 samples to an Opus packet
func (e *OpusEncoder) Encode(samples []int16) ([]byte, error) {
	n, err := e.encoder.Encode(samples, e.data)
	if err != nil {
		return nil, fmt.Errorf("opus encode error: %w", err)
	}

	out := make([]byte, n)
	copy(out, e.data[:n])
	return out, nil
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
