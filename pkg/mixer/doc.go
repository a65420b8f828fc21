// ABOUTME: Real-time sound mixer package
// ABOUTME: Task queue, voice list and the MixSound render pass
// Package mixer renders interleaved stereo audio from any number of
// concurrently playing sound resources.
//
// Any goroutine may call the sound API. Calls become tasks on a
// multi-producer queue; the single goroutine that drives an output device
// drains that queue at the start of every MixSound call and owns the voice
// list exclusively.
//
// Example:
//
//	m := mixer.New(mixer.Config{})
//	res := mixer.NewPCMResource("beep", samples, 1)
//	h := m.StartSound(res, 1.0)
//	m.MixSound(buf, buf[1:], 2, frames, nil)
//	m.StopHandle(h)
package mixer
