// ABOUTME: Audio backend drivers
// ABOUTME: Callback, polling-thread and worklet drivers that pull audio from the mixer
// Package output provides the drivers that play a Renderer's audio.
//
// Drivers come in three shapes:
//   - callback: malgo (default), pulse and portaudio (build tag portaudio)
//     render inside the device callback
//   - polling thread: Poll renders on a locked OS thread into a Device,
//     either a system player process (pipe) or /dev/dsp (oss)
//   - worklet: oto pulls a reader that renders one quantum at a time
//
// Example:
//
//	drv, err := output.NewDriver("malgo")
//	err = drv.Initialize(m, output.Config{})
//	defer drv.Deinitialize()
package output
