// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, engine constants and sample conversion functions
// Package audio provides fundamental audio types shared by the chime packages.
//
// The mixer renders interleaved stereo float32 samples in 16-bit scale at
// EngineSampleRate. Output drivers convert that representation with:
//   - FloatToInt16 / PutS16LE: clamped signed 16-bit output
//   - FloatToUnit / PutF32LE: normalized float output
//
// Loaders use SampleToInt16 and ToStereo to bring decoded PCM into the
// engine's stereo 16-bit layout.
//
// Example:
//
//	stereo := audio.ToStereo(mono, 1)
//	out := make([]byte, len(mixed)*2)
//	audio.PutS16LE(out, mixed)
package audio
