// ABOUTME: WAV loader
// ABOUTME: Reads integer PCM wave files with go-audio/wav
package decode

import (
	"bytes"
	"fmt"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/mixer"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// LoadWAV decodes a wave file into a raw resource
func LoadWAV(name string, data []byte) (*mixer.Resource, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid codec for WAV loader: not a wave file")
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("invalid codec for WAV loader: audio format %d is not integer PCM", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}

	bits := buf.SourceBitDepth
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = audio.SampleToInt16(v, bits)
	}

	return fromPCM(name, samples, buf.Format.SampleRate, buf.Format.NumChannels)
}
