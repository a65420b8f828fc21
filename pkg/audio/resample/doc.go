// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between the engine rate and device or source rates
// Package resample provides audio sample rate conversion.
//
// Resampler is a streaming converter that pulls fixed-size input blocks
// from a callback, which lets an output driver sit it between the mixer and
// a device that runs at a different rate. Convert resamples a whole buffer
// and is used by loaders at load time.
//
// Example:
//
//	r := resample.New(44100, 48000, 2, 441)
//	r.Read(deviceBuffer, func(block []float32) {
//	    mixer.MixSound(block, block[1:], 2, len(block)/2, nil)
//	})
package resample
