// ABOUTME: Sound loaders for the mixer
// ABOUTME: Provides loaders for WAV, MP3, FLAC, Ogg Vorbis, raw PCM and Opus packets
// Package decode turns sound files into mixer resources.
//
// Supports: WAV, MP3, FLAC, Ogg Vorbis, headerless PCM (8, 16, 24 and
// 32-bit) and Opus packets, plus generated sine tones.
//
// Raw loaders produce interleaved stereo int16 at 44100 Hz, resampling and
// duplicating channels as needed. MP3 and Vorbis can instead stay
// compressed as streaming resources.
//
// Example:
//
//	res, err := decode.Load("sounds/click.wav", decode.Options{})
//	music, err := decode.Load("music/theme.ogg", decode.Options{Stream: true})
package decode
