// ABOUTME: Tests for task application and the MixSound render pass
// ABOUTME: Covers voice lifetime, playing counts, master volume and error state
package mixer

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"
)

func newTestMixer() *Mixer {
	m := New(Config{MaxPendingTasks: -1})
	m.SetMasterVolume(1.0)
	return m
}

// constResource returns a stereo resource of frames frames holding value
func constResource(frames int, value int16) *Resource {
	samples := make([]int16, frames)
	for i := range samples {
		samples[i] = value
	}
	return NewPCMResource("const", samples, 1)
}

// endlessDecoder produces silence forever
type endlessDecoder struct{}

func (endlessDecoder) Seek(int64) error { return nil }

func (endlessDecoder) Read(dst []float32) (int, error) {
	clear(dst)
	return len(dst) / 2, nil
}

func mix(m *Mixer, frames int) []float32 {
	buf := make([]float32, frames*2)
	m.MixInterleaved(buf, frames)
	return buf
}

func TestScenarioShortResource(t *testing.T) {
	m := newTestMixer()
	r := NewPCMResource("r", []int16{1, 2, 3, 4}, 1)
	m.StartSound(r, 1.0)

	first := mix(m, 2)
	expected := []float32{1, 1, 2, 2}
	for i, want := range expected {
		if first[i] != want {
			t.Errorf("first mix sample %d: expected %f, got %f", i, want, first[i])
		}
	}
	if m.voices[0].offset != 2 {
		t.Errorf("expected offset 2, got %d", m.voices[0].offset)
	}
	if r.PlayingCount() != 1 {
		t.Errorf("expected playing count 1, got %d", r.PlayingCount())
	}

	second := mix(m, 4)
	expected = []float32{3, 3, 4, 4, 0, 0, 0, 0}
	for i, want := range expected {
		if second[i] != want {
			t.Errorf("second mix sample %d: expected %f, got %f", i, want, second[i])
		}
	}
	if len(m.voices) != 0 {
		t.Errorf("expected voice to be removed, got %d voices", len(m.voices))
	}
	if r.PlayingCount() != 0 {
		t.Errorf("expected playing count 0, got %d", r.PlayingCount())
	}
	if r.IsPlaying() {
		t.Error("expected resource to be idle")
	}
}

func TestMixSilenceWithoutVoices(t *testing.T) {
	m := newTestMixer()
	buf := make([]float32, 64)
	for i := range buf {
		buf[i] = 123
	}
	m.MixInterleaved(buf, 32)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d: expected 0, got %f", i, v)
		}
	}
}

func TestMasterVolume(t *testing.T) {
	tests := []struct {
		name   string
		volume float32
		want   float32
	}{
		{"muted", 0.0, 0},
		{"unity", 1.0, 300},
		{"half", 0.5, 150},
		{"clamped above one", 2.0, 300},
		{"clamped below zero", -1.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMixer()
			m.SetMasterVolume(tt.volume)
			m.StartSound(constResource(16, 100), 1.0)
			m.StartSound(constResource(16, 200), 1.0)

			buf := mix(m, 8)
			for i, v := range buf {
				if math.Abs(float64(v-tt.want)) > 1e-3 {
					t.Fatalf("sample %d: expected %f, got %f", i, tt.want, v)
				}
			}
		})
	}
}

func TestInitialMasterVolume(t *testing.T) {
	zero := float32(0)
	half := float32(0.5)

	tests := []struct {
		name   string
		volume *float32
		want   float32
	}{
		{"default", nil, DefaultMasterVolume},
		{"explicit zero", &zero, 0},
		{"half", &half, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(Config{MasterVolume: tt.volume})
			if got := m.MasterVolume(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestHandlesStartAtTwo(t *testing.T) {
	m := newTestMixer()
	r := constResource(4, 1)

	first := m.StartSound(r, 1)
	second := m.StartSoundAtPosition(r, 1, Vec3{X: 1})
	if first != 2 || second != 3 {
		t.Errorf("expected handles 2 and 3, got %d and %d", first, second)
	}
}

func TestVoiceVolume(t *testing.T) {
	m := newTestMixer()
	m.StartSound(constResource(8, 1000), 0.25)
	buf := mix(m, 4)
	if buf[0] != 250 || buf[1] != 250 {
		t.Errorf("expected 250, got %f/%f", buf[0], buf[1])
	}
}

func TestDoubleStartStopByHandle(t *testing.T) {
	m := newTestMixer()
	r := constResource(100, 10)

	h1 := m.StartSound(r, 1.0)
	h2 := m.StartSound(r, 1.0)
	if !h1.IsValid() || !h2.IsValid() || h1 == h2 {
		t.Fatalf("expected two distinct handles, got %d and %d", h1, h2)
	}

	buf := mix(m, 4)
	if r.PlayingCount() != 2 {
		t.Fatalf("expected playing count 2, got %d", r.PlayingCount())
	}
	if buf[0] != 20 {
		t.Errorf("expected both voices summed to 20, got %f", buf[0])
	}

	m.StopHandle(h1)
	mix(m, 4)
	if r.PlayingCount() != 1 {
		t.Fatalf("expected playing count 1, got %d", r.PlayingCount())
	}
	if len(m.voices) != 1 || m.voices[0].id != h2 {
		t.Fatalf("expected only voice %d to remain", h2)
	}
	if m.voices[0].offset != 8 {
		t.Errorf("expected surviving voice offset 8, got %d", m.voices[0].offset)
	}
}

func TestStopSoundStopsEveryVoiceOfResource(t *testing.T) {
	m := newTestMixer()
	a := constResource(100, 1)
	b := constResource(100, 2)

	m.StartSound(a, 1.0)
	m.StartSound(a, 1.0)
	m.StartSound(b, 1.0)
	mix(m, 1)

	m.StopSound(a)
	buf := mix(m, 1)
	if a.PlayingCount() != 0 {
		t.Errorf("expected resource a idle, got %d", a.PlayingCount())
	}
	if b.PlayingCount() != 1 {
		t.Errorf("expected resource b still playing, got %d", b.PlayingCount())
	}
	if buf[0] != 2 {
		t.Errorf("expected only b in mix, got %f", buf[0])
	}
}

func TestStartThenStopInSameBatch(t *testing.T) {
	m := newTestMixer()
	r := constResource(100, 500)

	h := m.StartSound(r, 1.0)
	m.StopHandle(h)

	buf := mix(m, 16)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d: expected silence, got %f", i, v)
		}
	}
	if r.PlayingCount() != 0 {
		t.Errorf("expected playing count 0, got %d", r.PlayingCount())
	}
}

func TestStopFinishedVoiceIsIgnored(t *testing.T) {
	m := newTestMixer()
	r := constResource(2, 1)
	h := m.StartSound(r, 1.0)
	mix(m, 4)

	m.StopHandle(h)
	m.SetHandlePosition(h, Vec3{X: 1})
	mix(m, 4)
	if r.PlayingCount() != 0 {
		t.Errorf("expected playing count to stay 0, got %d", r.PlayingCount())
	}
}

func TestOffsetNeverExceedsDuration(t *testing.T) {
	m := newTestMixer()
	r := constResource(10, 1)
	m.StartSound(r, 1.0)

	// 10 frames in quanta of 5: the voice must end exactly at the boundary
	mix(m, 5)
	if len(m.voices) != 1 || m.voices[0].offset != 5 {
		t.Fatalf("expected one voice at offset 5")
	}
	mix(m, 5)
	if len(m.voices) != 0 {
		t.Fatalf("expected voice removed at duration, got %d voices", len(m.voices))
	}
	if r.PlayingCount() != 0 {
		t.Errorf("expected single decrement to 0, got %d", r.PlayingCount())
	}

	mix(m, 5)
	if r.PlayingCount() != 0 {
		t.Errorf("expected count to stay 0, got %d", r.PlayingCount())
	}
}

func TestRemovalDoesNotSkipVoices(t *testing.T) {
	m := newTestMixer()
	short := constResource(1, 1)
	long := constResource(100, 10)

	m.StartSound(short, 1.0)
	m.StartSound(short, 1.0)
	m.StartSound(long, 1.0)

	buf := mix(m, 2)
	// frame 0: 1 + 1 + 10, frame 1: only the long voice
	if buf[0] != 12 {
		t.Errorf("frame 0: expected 12, got %f", buf[0])
	}
	if buf[2] != 10 {
		t.Errorf("frame 1: expected 10, got %f", buf[2])
	}
	if m.voices[0].offset != 2 {
		t.Errorf("expected long voice offset 2, got %d", m.voices[0].offset)
	}
}

func TestConcurrentProducersMatchSequentialResult(t *testing.T) {
	const producers = 8
	const perProducer = 50

	m := newTestMixer()
	resources := make([]*Resource, producers)
	for i := range resources {
		resources[i] = NewStreamResource("endless", nil, 0, endlessDecoder{})
	}

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(r *Resource) {
			defer wg.Done()
			// Start two, stop one: each producer leaves perProducer voices
			for i := 0; i < perProducer; i++ {
				m.StartSound(r, 1.0)
				h := m.StartSound(r, 1.0)
				m.StopHandle(h)
			}
		}(resources[p])
	}

	stop := make(chan struct{})
	mixed := make(chan struct{})
	go func() {
		defer close(mixed)
		buf := make([]float32, 16)
		for {
			select {
			case <-stop:
				return
			default:
				m.MixInterleaved(buf, 8)
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-mixed
	for m.Stats().PendingTasks > 0 {
		mix(m, 1)
	}
	mix(m, 1)

	if len(m.voices) != producers*perProducer {
		t.Errorf("expected %d voices, got %d", producers*perProducer, len(m.voices))
	}
	for i, r := range resources {
		if r.PlayingCount() != perProducer {
			t.Errorf("resource %d: expected playing count %d, got %d", i, perProducer, r.PlayingCount())
		}
	}
}

func TestPositionalVoiceFavorsNearEar(t *testing.T) {
	m := newTestMixer()
	r := constResource(100, 1000)

	// Ear 0 sits at +X and feeds the left channel
	m.StartSoundAtPosition(r, 1.0, Vec3{X: 2})
	buf := mix(m, 1)
	if buf[0] <= buf[1] {
		t.Errorf("expected left louder for a source at +X, got L=%f R=%f", buf[0], buf[1])
	}

	m.SetSoundSourcePosition(r, Vec3{X: -2})
	buf = mix(m, 1)
	if buf[1] <= buf[0] {
		t.Errorf("expected right louder after moving to -X, got L=%f R=%f", buf[0], buf[1])
	}
}

func TestListenerRotationSwapsEars(t *testing.T) {
	m := newTestMixer()
	r := constResource(100, 1000)
	m.StartSoundAtPosition(r, 1.0, Vec3{X: 2})
	before := mix(m, 1)

	m.SetSoundListenerLocation(Transform{Rotation: AxisAngle(Vec3{Y: 1}, math.Pi)})
	after := mix(m, 1)

	if math.Abs(float64(before[0]-after[1])) > 1e-2 || math.Abs(float64(before[1]-after[0])) > 1e-2 {
		t.Errorf("expected channels to swap: before L=%f R=%f, after L=%f R=%f",
			before[0], before[1], after[0], after[1])
	}
}

func TestPlanarOutput(t *testing.T) {
	m := newTestMixer()
	m.StartSound(NewPCMResource("stereo", []int16{1, 2, 3, 4}, 2), 1.0)

	left := make([]float32, 2)
	right := make([]float32, 2)
	m.MixSound(left, right, 1, 2, make([]float32, 4))

	if left[0] != 1 || left[1] != 3 || right[0] != 2 || right[1] != 4 {
		t.Errorf("expected L=[1 3] R=[2 4], got L=%v R=%v", left, right)
	}
}

func TestDroppedTasksWhenQueueFull(t *testing.T) {
	m := New(Config{MaxPendingTasks: 2})
	r := constResource(10, 1)

	m.StartSound(r, 1)
	m.StartSound(r, 1)
	if h := m.StartSound(r, 1); h.IsValid() {
		t.Errorf("expected invalid handle when queue is full, got %d", h)
	}
	if m.Stats().DroppedTasks != 1 {
		t.Errorf("expected 1 dropped task, got %d", m.Stats().DroppedTasks)
	}
}

func TestNilResourceIsIgnored(t *testing.T) {
	m := newTestMixer()
	if h := m.StartSound(nil, 1); h.IsValid() {
		t.Errorf("expected invalid handle, got %d", h)
	}
	m.StopSound(nil)
	m.StopHandle(InvalidHandle)
	if m.Stats().PendingTasks != 0 {
		t.Errorf("expected no queued tasks, got %d", m.Stats().PendingTasks)
	}
}

func TestErrorState(t *testing.T) {
	m := newTestMixer()
	if !m.IsOk() {
		t.Fatal("expected new mixer to be ok")
	}

	m.SetError("device lost")
	if m.IsOk() {
		t.Error("expected mixer to be failed")
	}
	if m.ErrorDescription() != "device lost" {
		t.Errorf("expected 'device lost', got %q", m.ErrorDescription())
	}

	m.SetError("")
	if m.ErrorDescription() != defaultErrorDescription {
		t.Errorf("expected default description, got %q", m.ErrorDescription())
	}
}

func TestResetStopsEverything(t *testing.T) {
	m := newTestMixer()
	r := constResource(100, 1)
	m.StartSound(r, 1)
	mix(m, 1)
	m.StartSound(r, 1)
	m.RequestQuit()
	m.SetError("boom")

	m.Reset()
	if r.PlayingCount() != 0 {
		t.Errorf("expected playing count 0, got %d", r.PlayingCount())
	}
	if m.QuitRequested() || !m.IsOk() {
		t.Error("expected quit and error state cleared")
	}
	if m.Stats().PendingTasks != 0 {
		t.Errorf("expected queued tasks discarded, got %d", m.Stats().PendingTasks)
	}
}

func TestReleaseAllKeepsErrorState(t *testing.T) {
	m := newTestMixer()
	r := constResource(100, 1)
	m.StartSound(r, 1)
	mix(m, 1)
	m.SetError("device lost")
	m.RequestQuit()

	m.ReleaseAll()
	if r.IsPlaying() {
		t.Error("expected voices released")
	}
	if m.IsOk() || !m.QuitRequested() {
		t.Error("expected quit and error state kept")
	}
	if m.ErrorDescription() != "device lost" {
		t.Errorf("expected description kept, got %q", m.ErrorDescription())
	}
}

func TestStats(t *testing.T) {
	m := newTestMixer()
	m.StartSound(constResource(100, 1), 1)
	m.StartSound(constResource(100, 1), 1)
	mix(m, 10)
	mix(m, 10)

	s := m.Stats()
	if s.ActiveVoices != 2 {
		t.Errorf("expected 2 active voices, got %d", s.ActiveVoices)
	}
	if s.MixedFrames != 20 {
		t.Errorf("expected 20 mixed frames, got %d", s.MixedFrames)
	}
}

func TestWaitIdle(t *testing.T) {
	m := newTestMixer()
	r := constResource(4, 1)
	m.StartSound(r, 1)
	mix(m, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.WaitIdle(ctx, time.Millisecond); err == nil {
		t.Fatal("expected timeout while the voice plays")
	}

	mix(m, 4)
	if err := r.WaitIdle(context.Background(), time.Millisecond); err != nil {
		t.Errorf("expected idle resource, got %v", err)
	}
}

func TestLimiterKeepsOutputInRange(t *testing.T) {
	m := New(Config{Limiter: true, MaxPendingTasks: -1})
	m.SetMasterVolume(1.0)
	for i := 0; i < 4; i++ {
		m.StartSound(constResource(44100, 30000), 1.0)
	}

	buf := mix(m, 4410)
	for i, v := range buf {
		if v > 32767 || v < -32767 {
			t.Fatalf("sample %d out of range: %f", i, v)
		}
	}
}
