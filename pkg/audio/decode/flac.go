// ABOUTME: FLAC loader
// ABOUTME: Decodes every FLAC frame with mewkiz/flac into a raw resource
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/mixer"
	"github.com/mewkiz/flac"
)

// LoadFLAC decodes a FLAC file
func LoadFLAC(name string, data []byte) (*mixer.Resource, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid codec for FLAC loader: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)

	samples := make([]int16, 0, int(info.NSamples)*channels)
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode FLAC frame: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, audio.SampleToInt16(int(frame.Subframes[ch].Samples[i]), bitDepth))
			}
		}
	}

	return fromPCM(name, samples, int(info.SampleRate), channels)
}
