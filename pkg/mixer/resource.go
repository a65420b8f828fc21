// ABOUTME: Sound resources shared by voices
// ABOUTME: Raw stereo PCM or a compressed blob with a seekable stream decoder
package mixer

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/google/uuid"
)

// Kind tells how a resource stores its audio
type Kind int

const (
	// RawPCM resources hold interleaved stereo int16 samples
	RawPCM Kind = iota
	// StreamingCodec resources hold an encoded blob decoded while mixing
	StreamingCodec
)

func (k Kind) String() string {
	switch k {
	case RawPCM:
		return "pcm"
	case StreamingCodec:
		return "stream"
	default:
		return "unknown"
	}
}

// StreamDecoder decodes a streaming-codec resource on the mixer goroutine.
// One decoder is shared by every voice of a resource, so the mixer seeks it
// to the voice offset before each read.
type StreamDecoder interface {
	// Seek positions the decoder at the given frame
	Seek(frame int64) error
	// Read fills dst with interleaved stereo frames in 16-bit scale and
	// returns the number of frames written. io.EOF marks the end of data.
	Read(dst []float32) (int, error)
}

// Resource is one loaded sound. It is immutable after construction except
// for the playing counter.
type Resource struct {
	id      string
	name    string
	kind    Kind
	frames  int64
	pcm     []int16
	data    []byte
	decoder StreamDecoder

	playing atomic.Int32
}

// NewPCMResource creates a raw resource from interleaved samples with the
// given channel count. Mono input is duplicated to stereo.
func NewPCMResource(name string, samples []int16, channels int) *Resource {
	stereo := audio.ToStereo(samples, channels)
	return &Resource{
		id:     uuid.New().String(),
		name:   name,
		kind:   RawPCM,
		frames: int64(len(stereo) / 2),
		pcm:    stereo,
	}
}

// NewStreamResource creates a streaming-codec resource. frames is the
// decoded duration; zero means unknown, in which case voices end when the
// decoder reports end of data.
func NewStreamResource(name string, data []byte, frames int64, decoder StreamDecoder) *Resource {
	return &Resource{
		id:      uuid.New().String(),
		name:    name,
		kind:    StreamingCodec,
		frames:  frames,
		data:    data,
		decoder: decoder,
	}
}

// ID returns the unique resource id
func (r *Resource) ID() string { return r.id }

// Name returns the name the resource was loaded under
func (r *Resource) Name() string { return r.name }

// Kind returns the storage kind
func (r *Resource) Kind() Kind { return r.kind }

// Duration returns the length in frames (samples per channel)
func (r *Resource) Duration() int64 { return r.frames }

// Samples returns the interleaved stereo samples of a raw resource.
// The slice must not be modified.
func (r *Resource) Samples() []int16 { return r.pcm }

// Data returns the encoded blob of a streaming resource
func (r *Resource) Data() []byte { return r.data }

// PlayingCount returns the number of live voices using the resource. The
// value may change concurrently.
func (r *Resource) PlayingCount() int32 { return r.playing.Load() }

// IsPlaying reports whether any voice currently uses the resource
func (r *Resource) IsPlaying() bool { return r.playing.Load() != 0 }

// WaitIdle polls until no voice uses the resource or ctx is done
func (r *Resource) WaitIdle(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for r.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// render writes up to len(dst)/2 frames starting at offset and returns the
// number of frames produced. Mixer goroutine only.
func (r *Resource) render(offset int64, dst []float32) int {
	want := int64(len(dst) / 2)
	if r.frames > 0 {
		if offset >= r.frames {
			return 0
		}
		want = min(want, r.frames-offset)
	}

	switch r.kind {
	case RawPCM:
		src := r.pcm[offset*2 : (offset+want)*2]
		for i, s := range src {
			dst[i] = float32(s)
		}
		return int(want)

	case StreamingCodec:
		if r.decoder == nil {
			return 0
		}
		if err := r.decoder.Seek(offset); err != nil {
			log.Printf("Stream %s: seek to %d failed: %v", r.name, offset, err)
			return 0
		}

		got := 0
		for int64(got) < want {
			n, err := r.decoder.Read(dst[got*2 : want*2])
			got += n
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Printf("Stream %s: decode error: %v", r.name, err)
				}
				break
			}
			if n == 0 {
				break
			}
		}
		return got
	}

	return 0
}
