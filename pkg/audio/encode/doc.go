// ABOUTME: Audio encoder package used to upload sounds to a remote player
// ABOUTME: Provides Encoder interface and implementations for PCM and Opus
// Package encode provides audio encoders for sound uploads.
//
// Supports: PCM (16-bit and 24-bit), Opus
//
// Example:
//
//	enc, err := encode.NewOpus(audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2})
//	packets, err := encode.Packetize(enc, samples, 960, 2)
package encode
