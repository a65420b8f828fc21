// ABOUTME: Integration tests for Player API
// ABOUTME: Tests player creation, driver lifecycle, error reporting and playback
package chime

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chime-audio/chime/pkg/audio/decode"
	"github.com/chime-audio/chime/pkg/audio/output"
	"github.com/chime-audio/chime/pkg/mixer"
)

// fakeDriver records lifecycle calls and hands the renderer back to the test
type fakeDriver struct {
	mu       sync.Mutex
	initErr  error
	renderer output.Renderer
	cfg      output.Config
	state    output.State
	inits    int
	deinits  int
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Initialize(r output.Renderer, cfg output.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inits++
	if d.initErr != nil {
		return d.initErr
	}
	d.renderer = r
	d.cfg = cfg
	d.state = output.StateRunning
	return nil
}

func (d *fakeDriver) Deinitialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deinits++
	d.state = output.StateClosed
	return nil
}

func (d *fakeDriver) Devices() ([]output.DeviceInfo, error) {
	return []output.DeviceInfo{{SystemName: "fake:0", Description: "Fake output", IsOutput: true}}, nil
}

func (d *fakeDriver) State() output.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// pacedDevice accepts writes at a fixed pace
type pacedDevice struct {
	mu      sync.Mutex
	writes  int
	audible int
}

func (d *pacedDevice) Open(cfg output.Config) (int, error) { return 0, nil }
func (d *pacedDevice) Prepare() error                      { return nil }
func (d *pacedDevice) Resume() error                       { return nil }
func (d *pacedDevice) Close() error                        { return nil }

func (d *pacedDevice) Write(buf []byte) error {
	time.Sleep(time.Millisecond)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	for _, b := range buf {
		if b != 0 {
			d.audible++
			break
		}
	}
	return nil
}

func (d *pacedDevice) audibleWrites() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.audible
}

func TestNewPlayerDefaults(t *testing.T) {
	player, err := NewPlayer(PlayerConfig{Backend: &fakeDriver{}})
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}

	if player.config.SampleRate != 44100 {
		t.Errorf("Expected default sample rate 44100, got %d", player.config.SampleRate)
	}
	if player.MasterVolume() != mixer.DefaultMasterVolume {
		t.Errorf("Expected default master volume %v, got %v", mixer.DefaultMasterVolume, player.MasterVolume())
	}
	if player.DriverName() != "fake" {
		t.Errorf("Expected driver fake, got %s", player.DriverName())
	}
	if !player.IsOk() {
		t.Error("Expected new player to be ok")
	}
}

func TestNewPlayerSilentVolume(t *testing.T) {
	silent := float32(0)
	player, err := NewPlayer(PlayerConfig{Backend: &fakeDriver{}, MasterVolume: &silent})
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	if player.MasterVolume() != 0 {
		t.Errorf("Expected master volume 0, got %v", player.MasterVolume())
	}
}

func TestNewPlayerDriverByName(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{"", "malgo", false},
		{"pipe", "pipe", false},
		{"oto", "oto", false},
		{"asio", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			player, err := NewPlayer(PlayerConfig{Driver: tt.driver})
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error for unknown driver")
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to create player: %v", err)
			}
			if player.DriverName() != tt.want {
				t.Errorf("Expected driver %s, got %s", tt.want, player.DriverName())
			}
		})
	}
}

func TestInitializePassesConfig(t *testing.T) {
	drv := &fakeDriver{}
	player, err := NewPlayer(PlayerConfig{
		Backend:    drv,
		DeviceName: "hw:1",
		Output:     output.Config{PeriodFrames: 256},
	})
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}

	if err := player.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer player.Deinitialize()

	if drv.cfg.DeviceName != "hw:1" {
		t.Errorf("Expected device hw:1, got %q", drv.cfg.DeviceName)
	}
	if drv.cfg.PeriodFrames != 256 {
		t.Errorf("Expected period 256, got %d", drv.cfg.PeriodFrames)
	}
	if drv.cfg.SampleRate != 44100 {
		t.Errorf("Expected engine rate 44100, got %d", drv.cfg.SampleRate)
	}
	if drv.renderer != output.Renderer(player.Mixer()) {
		t.Error("Expected the mixer to be handed to the driver")
	}

	if err := player.Initialize(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("Expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestInitializeFailure(t *testing.T) {
	var reported error
	drv := &fakeDriver{initErr: errors.New("no such device")}
	player, err := NewPlayer(PlayerConfig{
		Backend: drv,
		OnError: func(err error) { reported = err },
	})
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}

	err = player.Initialize()
	if err == nil {
		t.Fatal("Expected initialize to fail")
	}
	if player.IsOk() {
		t.Error("Expected player not ok after failed initialize")
	}
	if player.ErrorDescription() != "no such device" {
		t.Errorf("Expected description 'no such device', got %q", player.ErrorDescription())
	}
	if reported == nil || !strings.Contains(reported.Error(), "no such device") {
		t.Errorf("Expected OnError with the driver error, got %v", reported)
	}

	// A later successful initialize clears the error
	drv.initErr = nil
	if err := player.Initialize(); err != nil {
		t.Fatalf("Second initialize failed: %v", err)
	}
	defer player.Deinitialize()
	if !player.IsOk() {
		t.Error("Expected error cleared on reinitialize")
	}
}

func TestFatalDriverErrorReported(t *testing.T) {
	errs := make(chan error, 1)
	drv := &fakeDriver{}
	player, err := NewPlayer(PlayerConfig{
		Backend: drv,
		OnError: func(err error) { errs <- err },
	})
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	if err := player.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer player.Deinitialize()

	drv.renderer.SetError("audio device lost")
	drv.renderer.RequestQuit()

	select {
	case err := <-errs:
		if err.Error() != "audio device lost" {
			t.Errorf("Expected 'audio device lost', got %q", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for OnError")
	}
}

func TestDeinitializeStopsVoices(t *testing.T) {
	drv := &fakeDriver{}
	player, err := NewPlayer(PlayerConfig{Backend: drv})
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	if err := player.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	tone := decode.Tone("beep", 880, time.Second, 0.5)
	if h := player.StartSound(tone, 1); !h.IsValid() {
		t.Fatal("Expected valid handle")
	}
	player.Mixer().MixInterleaved(make([]float32, 64*2), 64)
	if !tone.IsPlaying() {
		t.Fatal("Expected tone to be playing")
	}

	if err := player.Deinitialize(); err != nil {
		t.Fatalf("Deinitialize failed: %v", err)
	}
	if tone.IsPlaying() {
		t.Error("Expected tone stopped after deinitialize")
	}
	if drv.deinits != 1 {
		t.Errorf("Expected 1 driver deinit, got %d", drv.deinits)
	}
	if err := player.Deinitialize(); err != nil {
		t.Errorf("Expected second deinitialize to be a no-op, got %v", err)
	}
	if drv.deinits != 1 {
		t.Errorf("Expected driver deinit once, got %d", drv.deinits)
	}
}

func TestGetDeviceList(t *testing.T) {
	player, err := NewPlayer(PlayerConfig{Backend: &fakeDriver{}})
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	devs, err := player.GetDeviceList()
	if err != nil {
		t.Fatalf("GetDeviceList failed: %v", err)
	}
	if len(devs) != 1 || devs[0].SystemName != "fake:0" {
		t.Errorf("Expected fake:0, got %+v", devs)
	}
}

func TestPlaybackThroughPollDriver(t *testing.T) {
	dev := &pacedDevice{}
	player, err := NewPlayer(PlayerConfig{Backend: output.NewPoll("paced", dev)})
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	if err := player.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer player.Deinitialize()

	tone := decode.Tone("blip", 440, 50*time.Millisecond, 0.8)
	start := player.Stats().MixedFrames
	if h := player.StartSound(tone, 0.8); !h.IsValid() {
		t.Fatal("Expected valid handle")
	}

	// After one period past the tone's length the voice must be gone
	deadline := time.Now().Add(5 * time.Second)
	for player.Stats().MixedFrames-start < tone.Duration()+2*output.DefaultPeriodFrames || tone.IsPlaying() {
		if time.Now().After(deadline) {
			t.Fatalf("Tone never finished: mixed %d frames, playing=%v",
				player.Stats().MixedFrames-start, tone.IsPlaying())
		}
		time.Sleep(time.Millisecond)
	}

	if dev.audibleWrites() == 0 {
		t.Error("Expected the tone to reach the device")
	}
	if !player.IsOk() {
		t.Errorf("Expected player ok, got %q", player.ErrorDescription())
	}
	if player.DriverState() != output.StateRunning {
		t.Errorf("Expected running driver, got %s", player.DriverState())
	}
}
