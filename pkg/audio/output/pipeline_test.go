// ABOUTME: Tests for the render pipeline and the oto worklet reader
// ABOUTME: Checks direct rendering, resampling and quantum-sized planar rendering
package output

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestPipelineDirect(t *testing.T) {
	r := &fakeRenderer{value: 2000}
	p, err := newPipeline(r, Config{}.withDefaults())
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	if p.resampling() {
		t.Fatal("expected no resampling at engine rate")
	}

	buf := make([]byte, 10*4)
	p.renderS16(buf, 10)

	for i := 0; i < 10; i++ {
		l := int16(binary.LittleEndian.Uint16(buf[i*4:]))
		rr := int16(binary.LittleEndian.Uint16(buf[i*4+2:]))
		if l != 2000 || rr != -2000 {
			t.Fatalf("frame %d: expected [2000 -2000], got [%d %d]", i, l, rr)
		}
	}
	if r.callCount() != 1 || r.sizes[0] != 10 || r.strides[0] != 2 {
		t.Errorf("expected one interleaved call of 10 frames, got %d calls %v", r.callCount(), r.sizes)
	}
}

func TestPipelineResamples(t *testing.T) {
	r := &fakeRenderer{value: 1000}
	p, err := newPipeline(r, Config{DeviceRate: 88200, PeriodFrames: 32}.withDefaults())
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	if !p.resampling() {
		t.Fatal("expected resampling for 88200 Hz device")
	}

	out := make([]float32, 100*2)
	p.renderUnit(out, 100)

	want := float32(1000) / 32767
	for i := 0; i < 100; i++ {
		if math.Abs(float64(out[i*2]-want)) > 1e-6 || math.Abs(float64(out[i*2+1]+want)) > 1e-6 {
			t.Fatalf("frame %d: expected [%v %v], got [%v %v]", i, want, -want, out[i*2], out[i*2+1])
		}
	}
	for i, n := range r.sizes {
		if n != 32 {
			t.Errorf("call %d: expected blocks of 32 frames, got %d", i, n)
		}
	}
	// 100 output frames at double rate consume about 50 input frames
	if r.callCount() != 2 {
		t.Errorf("expected 2 mixer calls, got %d", r.callCount())
	}
}

func TestPipelineRejectsMismatch(t *testing.T) {
	_, err := newPipeline(&fakeRenderer{}, Config{DeviceRate: 48000, RejectRateMismatch: true}.withDefaults())
	if !errors.Is(err, ErrRateMismatch) {
		t.Errorf("expected ErrRateMismatch, got %v", err)
	}
}

func TestWorkletReaderQuanta(t *testing.T) {
	r := &fakeRenderer{value: 32767}
	w, err := newWorkletReader(r, Config{}.withDefaults())
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}

	p := make([]byte, 300*8+5)
	n, err := w.Read(p)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if n != 300*8 {
		t.Errorf("expected %d bytes, got %d", 300*8, n)
	}

	wantSizes := []int{128, 128, 44}
	if len(r.sizes) != len(wantSizes) {
		t.Fatalf("expected %d quanta, got %v", len(wantSizes), r.sizes)
	}
	for i := range wantSizes {
		if r.sizes[i] != wantSizes[i] {
			t.Errorf("quantum %d: expected %d frames, got %d", i, wantSizes[i], r.sizes[i])
		}
		if r.strides[i] != 1 {
			t.Errorf("quantum %d: expected planar stride 1, got %d", i, r.strides[i])
		}
	}

	l := math.Float32frombits(binary.LittleEndian.Uint32(p[299*8:]))
	rr := math.Float32frombits(binary.LittleEndian.Uint32(p[299*8+4:]))
	if l != 1 || rr != -1 {
		t.Errorf("expected last frame [1 -1], got [%v %v]", l, rr)
	}
}

func TestWorkletReaderSilentAfterQuit(t *testing.T) {
	r := &fakeRenderer{value: 1000}
	r.RequestQuit()
	w, err := newWorkletReader(r, Config{}.withDefaults())
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}

	p := make([]byte, 16*8)
	for i := range p {
		p[i] = 0xAA
	}
	if _, err := w.Read(p); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	for i, b := range p {
		if b != 0 {
			t.Fatalf("byte %d: expected silence, got %#x", i, b)
		}
	}
	if r.callCount() != 0 {
		t.Errorf("expected no mixer calls after quit, got %d", r.callCount())
	}
}
