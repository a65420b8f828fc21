// ABOUTME: Audio type definitions
// ABOUTME: Defines formats, engine constants and 16-bit sample conversions
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// EngineSampleRate is the fixed rate the mixer renders at
	EngineSampleRate = 44100
	// EngineChannels is the number of interleaved channels the mixer renders
	EngineChannels = 2

	// 16-bit output range; -32768 is never produced so the range is symmetric
	MaxSample16 = 32767
	MinSample16 = -32767
)

// Format describes a PCM or encoded source before it is loaded
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// FloatToInt16 converts a mixed sample in 16-bit scale to int16, clamping
func FloatToInt16(v float32) int16 {
	if v > MaxSample16 {
		return MaxSample16
	}
	if v < MinSample16 {
		return MinSample16
	}
	return int16(v)
}

// FloatToUnit converts a mixed sample in 16-bit scale to the [-1, 1] range
func FloatToUnit(v float32) float32 {
	u := v / MaxSample16
	if u > 1 {
		return 1
	}
	if u < -1 {
		return -1
	}
	return u
}

// PutS16LE writes mixed samples as signed 16-bit little-endian bytes.
// dst must hold at least 2*len(src) bytes.
func PutS16LE(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(FloatToInt16(v)))
	}
}

// PutF32LE writes mixed samples as normalized float32 little-endian bytes.
// dst must hold at least 4*len(src) bytes.
func PutF32LE(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(FloatToUnit(v)))
	}
}

// SampleToInt16 scales an integer sample of the given bit depth to int16
func SampleToInt16(sample int, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		// 8-bit PCM is unsigned
		return int16((sample - 128) << 8)
	case bitDepth == 16:
		return int16(sample)
	case bitDepth > 16:
		return int16(sample >> (bitDepth - 16))
	default:
		return int16(sample << (16 - bitDepth))
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// ToStereo returns interleaved stereo samples. Mono input is duplicated to
// both channels, stereo input is returned as is, and wider layouts keep
// their first two channels.
func ToStereo(samples []int16, channels int) []int16 {
	switch channels {
	case 2:
		return samples
	case 1:
		out := make([]int16, len(samples)*2)
		for i, s := range samples {
			out[i*2] = s
			out[i*2+1] = s
		}
		return out
	case 0:
		return nil
	default:
		frames := len(samples) / channels
		out := make([]int16, frames*2)
		for i := 0; i < frames; i++ {
			out[i*2] = samples[i*channels]
			out[i*2+1] = samples[i*channels+1]
		}
		return out
	}
}
