// ABOUTME: Loader entry points and the packet Decoder interface
// ABOUTME: Dispatches files by extension and converts PCM to engine-rate stereo resources
package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/audio/resample"
	"github.com/chime-audio/chime/pkg/mixer"
)

// Decoder decodes encoded packets to interleaved int16 samples
type Decoder interface {
	// Decode converts one encoded packet to PCM samples
	Decode(data []byte) ([]int16, error)

	// Close releases decoder resources
	Close() error
}

// Options controls how a file becomes a resource
type Options struct {
	// Stream keeps MP3 and Vorbis files compressed and decodes them while
	// mixing. Sources that are not at the engine rate are always unpacked.
	Stream bool

	// Raw describes headerless .pcm/.raw files. Zero fields default to
	// 44100 Hz, 2 channels, 16 bits.
	Raw audio.Format
}

// Load reads a sound file and returns a resource named after the file
func Load(path string, opts Options) (*mixer.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sound file: %w", err)
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	return LoadBytes(name, ext, data, opts)
}

// LoadBytes decodes an in-memory file. ext selects the loader and may be
// given with or without the leading dot.
func LoadBytes(name, ext string, data []byte, opts Options) (*mixer.Resource, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	switch ext {
	case "wav", "wave":
		return LoadWAV(name, data)
	case "mp3":
		return LoadMP3(name, data, opts)
	case "flac":
		return LoadFLAC(name, data)
	case "ogg", "oga":
		return LoadVorbis(name, data, opts)
	case "pcm", "raw":
		format := opts.Raw
		format.Codec = "pcm"
		return LoadPCM(name, data, format)
	default:
		return nil, fmt.Errorf("unsupported format: %q", ext)
	}
}

// fromPCM builds a raw resource from interleaved samples at any rate
func fromPCM(name string, samples []int16, rate, channels int) (*mixer.Resource, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", rate)
	}

	stereo := audio.ToStereo(samples, channels)
	if rate != audio.EngineSampleRate {
		stereo = resampleStereo(stereo, rate)
	}
	return mixer.NewPCMResource(name, stereo, audio.EngineChannels), nil
}

func resampleStereo(stereo []int16, rate int) []int16 {
	in := make([]float32, len(stereo))
	for i, s := range stereo {
		in[i] = float32(s)
	}

	out := resample.Convert(in, rate, audio.EngineSampleRate, audio.EngineChannels)
	pcm := make([]int16, len(out))
	for i, v := range out {
		pcm[i] = audio.FloatToInt16(v)
	}
	return pcm
}
