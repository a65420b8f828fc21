// ABOUTME: Tests for the pipe and OSS devices
// ABOUTME: Backend detection, aplay -L parsing and underrun restarts with a real process
package output

import (
	"errors"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestParseAplayList(t *testing.T) {
	out := `null
    Discard all samples (playback) or generate zero samples (capture)
default
    Default ALSA Output (currently PipeWire Media Server)
hw:CARD=PCH,DEV=0
    HDA Intel PCH, ALC3246 Analog
    Direct hardware device without any conversions

`
	got := parseAplayList(out)

	want := []DeviceInfo{
		{SystemName: "null", Description: "Discard all samples (playback) or generate zero samples (capture)", IsOutput: true},
		{SystemName: "default", Description: "Default ALSA Output (currently PipeWire Media Server)", IsOutput: true},
		{SystemName: "hw:CARD=PCH,DEV=0", Description: "HDA Intel PCH, ALC3246 Analog, Direct hardware device without any conversions", IsOutput: true},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d devices, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("device %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestParseAplayListEmpty(t *testing.T) {
	if got := parseAplayList("   orphan description\n"); len(got) != 0 {
		t.Errorf("expected no devices, got %+v", got)
	}
}

func TestDetectPipeBackend(t *testing.T) {
	tests := []struct {
		name      string
		installed []string
		device    string
		want      string
		wantArgs  []string
	}{
		{"prefers pacat", []string{"aplay", "pacat"}, "", "pacat", []string{"--rate=48000"}},
		{"pw-cat target", []string{"pw-cat"}, "speakers", "pw-cat", []string{"--target=speakers", "-"}},
		{"aplay device", []string{"aplay", "ffplay"}, "hw:0", "aplay", []string{"-r", "48000", "-D", "hw:0"}},
		{"sox binary is play", []string{"play"}, "", "sox", []string{"-r", "48000"}},
		{"ffplay last", []string{"ffplay"}, "", "ffplay", []string{"-ar", "48000", "pipe:0"}},
	}

	orig := lookPath
	defer func() { lookPath = orig }()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookPath = func(file string) (string, error) {
				if slices.Contains(tt.installed, file) {
					return filepath.Join("/usr/bin", file), nil
				}
				return "", exec.ErrNotFound
			}

			b, err := DetectPipeBackend(48000, tt.device)
			if err != nil {
				t.Fatalf("detect failed: %v", err)
			}
			if b.Name != tt.want {
				t.Errorf("expected %s, got %s", tt.want, b.Name)
			}
			for _, arg := range tt.wantArgs {
				if !slices.Contains(b.Args, arg) {
					t.Errorf("expected arg %q in %v", arg, b.Args)
				}
			}
		})
	}
}

func TestDetectPipeBackendNone(t *testing.T) {
	orig := lookPath
	defer func() { lookPath = orig }()
	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	if _, err := DetectPipeBackend(44100, ""); !errors.Is(err, ErrNoBackend) {
		t.Errorf("expected ErrNoBackend, got %v", err)
	}
}

func TestPipeDeviceBeforeOpen(t *testing.T) {
	d := NewPipeDevice()
	if err := d.Write(make([]byte, 4)); !errors.Is(err, ErrUnderrun) {
		t.Errorf("expected ErrUnderrun, got %v", err)
	}
	if err := d.Prepare(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("expected close to succeed, got %v", err)
	}
}

func TestPipeDeviceRestartsDeadProcess(t *testing.T) {
	path, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}

	d := NewPipeDevice()
	d.backend = &PipeBackend{Name: "cat", Path: path}
	d.mu.Lock()
	err = d.start()
	d.mu.Unlock()
	if err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer d.Close()

	buf := make([]byte, 1024)
	if err := d.Write(buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	d.cmd.Process.Kill()
	<-d.exited

	if err := d.Write(buf); !errors.Is(err, ErrUnderrun) {
		t.Fatalf("expected ErrUnderrun from dead process, got %v", err)
	}
	if err := d.Prepare(); err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if err := d.Write(buf); err != nil {
		t.Errorf("expected write after restart to succeed, got %v", err)
	}
}

func TestOSSDeviceMissing(t *testing.T) {
	d := NewOSSDevice()
	_, err := d.Open(Config{DeviceName: filepath.Join(t.TempDir(), "dsp")}.withDefaults())
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("expected ErrNoBackend, got %v", err)
	}
	if err := d.Write(make([]byte, 4)); !errors.Is(err, ErrUnderrun) {
		t.Errorf("expected ErrUnderrun before open, got %v", err)
	}
}

func TestCheckDSP(t *testing.T) {
	tests := []struct {
		name     string
		format   int
		channels int
		rate     int
		wantErr  string
	}{
		{"accepted", afmtS16LE, 2, 44100, ""},
		{"other rate", afmtS16LE, 2, 48000, ""},
		{"unsigned 8-bit", 0x00000008, 2, 44100, "S16LE"},
		{"mono only", afmtS16LE, 1, 44100, "stereo"},
		{"no rate", afmtS16LE, 2, 0, "invalid rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkDSP(tt.format, tt.channels, tt.rate)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
