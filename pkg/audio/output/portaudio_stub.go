//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"fmt"
)

var errPortAudioDisabled = fmt.Errorf("%w: PortAudio support not enabled (build with -tags portaudio)", ErrNoBackend)

// PortAudio driver (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio driver
func NewPortAudio() Driver {
	return &PortAudio{}
}

// Name returns "portaudio"
func (p *PortAudio) Name() string { return "portaudio" }

// State is always uninitialized
func (p *PortAudio) State() State { return StateUninitialized }

// Initialize always fails
func (p *PortAudio) Initialize(r Renderer, cfg Config) error {
	return errPortAudioDisabled
}

// Deinitialize is a no-op
func (p *PortAudio) Deinitialize() error {
	return nil
}

// Devices always fails
func (p *PortAudio) Devices() ([]DeviceInfo, error) {
	return nil, errPortAudioDisabled
}
