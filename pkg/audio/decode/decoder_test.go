// ABOUTME: Tests for the sound loaders
// ABOUTME: Writes WAV fixtures with go-audio/wav and checks raw PCM and tone resources
package decode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/mixer"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes an integer PCM wave file and returns its path
func writeWAV(t *testing.T, rate, bitDepth, channels int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close encoder: %v", err)
	}
	return path
}

func TestLoadWAV(t *testing.T) {
	tests := []struct {
		name       string
		bitDepth   int
		channels   int
		data       []int
		wantFrames int64
		wantFirst  [2]int16
	}{
		{"16-bit mono", 16, 1, []int{1000, -1000, 500, 0}, 4, [2]int16{1000, 1000}},
		{"16-bit stereo", 16, 2, []int{100, 200, 300, 400}, 2, [2]int16{100, 200}},
		{"8-bit mono unsigned", 8, 1, []int{128, 255, 0}, 3, [2]int16{0, 0}},
		{"24-bit stereo", 24, 2, []int{256 << 8, -256 << 8}, 1, [2]int16{256, -256}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeWAV(t, audio.EngineSampleRate, tt.bitDepth, tt.channels, tt.data)

			res, err := Load(path, Options{})
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if res.Name() != "fixture" {
				t.Errorf("expected name fixture, got %q", res.Name())
			}
			if res.Kind() != mixer.RawPCM {
				t.Errorf("expected raw resource, got %v", res.Kind())
			}
			if res.Duration() != tt.wantFrames {
				t.Errorf("expected %d frames, got %d", tt.wantFrames, res.Duration())
			}

			s := res.Samples()
			if s[0] != tt.wantFirst[0] || s[1] != tt.wantFirst[1] {
				t.Errorf("expected first frame %v, got [%d %d]", tt.wantFirst, s[0], s[1])
			}
		})
	}
}

func TestLoadWAVResamples(t *testing.T) {
	data := make([]int, 22050)
	for i := range data {
		data[i] = 1000
	}
	path := writeWAV(t, 22050, 16, 1, data)

	res, err := Load(path, Options{})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if res.Duration() != 44100 {
		t.Errorf("expected 44100 frames after resampling, got %d", res.Duration())
	}
	if s := res.Samples(); s[1000] != 1000 {
		t.Errorf("expected constant signal preserved, got %d", s[1000])
	}
}

func TestLoadWAVRejectsGarbage(t *testing.T) {
	_, err := LoadBytes("junk", ".wav", []byte("definitely not a wave file"), Options{})
	if err == nil {
		t.Fatal("expected error for invalid wave data")
	}
	if !strings.Contains(err.Error(), "invalid codec for WAV loader") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadBytesUnsupported(t *testing.T) {
	_, err := LoadBytes("x", "xm", nil, Options{})
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.wav"), Options{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRawPCM(t *testing.T) {
	// two mono 16-bit samples: 0x0100 and 0x0302
	data := []byte{0x00, 0x01, 0x02, 0x03}
	res, err := LoadBytes("raw", ".pcm", data, Options{Raw: audio.Format{Channels: 1}})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want := []int16{256, 256, 770, 770}
	got := res.Samples()
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestPCMDecoder(t *testing.T) {
	tests := []struct {
		name     string
		bitDepth int
		input    []byte
		want     []int16
	}{
		{"8-bit", 8, []byte{0x80, 0xFF, 0x00}, []int16{0, 127 << 8, -128 << 8}},
		{"16-bit", 16, []byte{0x00, 0x01, 0xFF, 0xFF}, []int16{256, -1}},
		{"24-bit", 24, []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0xFF}, []int16{256, -256}},
		{"32-bit", 32, []byte{0x00, 0x00, 0x02, 0x00}, []int16{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := NewPCM(audio.Format{Codec: "pcm", BitDepth: tt.bitDepth})
			if err != nil {
				t.Fatalf("failed to create decoder: %v", err)
			}
			got, err := dec.Decode(tt.input)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d samples, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d: expected %d, got %d", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestNewPCM_InvalidFormat(t *testing.T) {
	_, err := NewPCM(audio.Format{Codec: "opus", BitDepth: 16})
	if err == nil || err.Error() != "invalid codec for PCM decoder: opus" {
		t.Errorf("expected invalid codec error, got %v", err)
	}

	if _, err := NewPCM(audio.Format{Codec: "pcm", BitDepth: 12}); err == nil {
		t.Error("expected error for 12-bit PCM")
	}
}

func TestNewOpus_InvalidCodec(t *testing.T) {
	decoder, err := NewOpus(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2})
	if err == nil {
		t.Fatal("expected error for invalid codec, got nil")
	}
	if decoder != nil {
		t.Fatal("expected decoder to be nil for invalid codec")
	}

	expectedError := "invalid codec for Opus decoder: pcm"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}

func TestTone(t *testing.T) {
	res := Tone("a4", 440, 100*time.Millisecond, 0.5)
	if res.Duration() != 4410 {
		t.Errorf("expected 4410 frames, got %d", res.Duration())
	}

	peak := int16(0)
	for _, s := range res.Samples() {
		if s > peak {
			peak = s
		}
	}
	if peak < 16000 || peak > 16384 {
		t.Errorf("expected peak near half scale, got %d", peak)
	}
}
