// ABOUTME: High-level chime library API
// ABOUTME: Provides the Player that ties a mixer to an output driver
// Package chime provides the high-level API for playing sound effects.
//
// This is the main entry point for most library users. A Player owns a
// mixer.Mixer and an output.Driver; the sound API is safe to call from any
// goroutine while the driver renders on its own.
//
// For lower-level control, see the mixer, audio/decode and audio/output
// packages.
//
// Example:
//
//	player, err := chime.NewPlayer(chime.PlayerConfig{Driver: "malgo"})
//	err = player.Initialize()
//	defer player.Deinitialize()
//
//	click, err := decode.Load("click.wav", decode.Options{})
//	player.StartSound(click, 1)
package chime
