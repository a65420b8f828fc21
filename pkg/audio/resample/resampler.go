// ABOUTME: Streaming linear resampler for converting audio sample rates
// ABOUTME: Pulls input blocks on demand and keeps interpolation state across calls
package resample

// Resampler performs linear interpolation to convert between sample rates.
// Input is pulled in fixed-size blocks so it can sit between a renderer
// that produces engine-rate audio and a device running at another rate.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64 // input frames consumed per output frame
	position   float64 // distance from prev towards next, in input frames

	prev []float32 // one frame
	next []float32 // one frame

	block    []float32 // pulled input block
	blockPos int       // next unread frame in block
	blockLen int       // frames available in block
}

// New creates a new resampler that pulls input in blocks of blockFrames
func New(inputRate, outputRate, channels, blockFrames int) *Resampler {
	if blockFrames <= 0 {
		blockFrames = 256
	}
	r := &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		prev:       make([]float32, channels),
		next:       make([]float32, channels),
		block:      make([]float32, blockFrames*channels),
	}
	r.Reset()
	return r
}

// Read fills output (interleaved, output rate) with resampled audio. fill is
// called whenever a new input block is needed and must fill the whole slice
// it is given with interleaved input-rate audio.
func (r *Resampler) Read(output []float32, fill func(input []float32)) {
	ch := r.channels
	frames := len(output) / ch

	for i := 0; i < frames; i++ {
		for r.position >= 1.0 {
			r.advance(fill)
			r.position -= 1.0
		}

		frac := float32(r.position)
		for c := 0; c < ch; c++ {
			a := r.prev[c]
			output[i*ch+c] = a + (r.next[c]-a)*frac
		}

		r.position += r.ratio
	}
}

// advance shifts next into prev and loads the next input frame
func (r *Resampler) advance(fill func(input []float32)) {
	if r.blockPos >= r.blockLen {
		fill(r.block)
		r.blockPos = 0
		r.blockLen = len(r.block) / r.channels
	}

	copy(r.prev, r.next)
	off := r.blockPos * r.channels
	copy(r.next, r.block[off:off+r.channels])
	r.blockPos++
}

// Reset drops buffered input and restarts interpolation
func (r *Resampler) Reset() {
	for i := range r.prev {
		r.prev[i] = 0
		r.next[i] = 0
	}
	r.blockPos = 0
	r.blockLen = 0
	// Two advances before the first output frame put prev on input frame 0
	r.position = 2.0
}

// Ratio returns input frames consumed per output frame
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// OutputFrames returns how many output frames inputFrames input frames produce
func (r *Resampler) OutputFrames(inputFrames int) int {
	return int(float64(inputFrames) / r.ratio)
}

// Convert resamples a complete interleaved buffer in one pass. It is meant
// for load time conversion, not for the real-time path.
func Convert(input []float32, inputRate, outputRate, channels int) []float32 {
	if inputRate == outputRate || len(input) == 0 {
		out := make([]float32, len(input))
		copy(out, input)
		return out
	}

	inFrames := len(input) / channels
	r := New(inputRate, outputRate, channels, inFrames)
	outFrames := r.OutputFrames(inFrames)
	out := make([]float32, outFrames*channels)

	served := false
	r.Read(out, func(block []float32) {
		if served {
			// Past the end: hold the last frame
			last := input[(inFrames-1)*channels : inFrames*channels]
			for i := 0; i < len(block); i += channels {
				copy(block[i:i+channels], last)
			}
			return
		}
		copy(block, input)
		served = true
	})
	return out
}
