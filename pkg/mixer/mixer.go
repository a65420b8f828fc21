// ABOUTME: Mixer state shared by API callers and the output driver
// ABOUTME: Holds master volume, quit and error state, the task queue and the voice list
package mixer

import (
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/chime-audio/chime/pkg/audio"
)

const (
	// DefaultMasterVolume is applied when Config.MasterVolume is nil
	DefaultMasterVolume = 0.7
	// DefaultMaxPendingTasks bounds the task queue when Config leaves it zero
	DefaultMaxPendingTasks = 1024

	defaultErrorDescription = "Error description is not set."
)

// Config configures a Mixer
type Config struct {
	SampleRate      int     // engine rate, defaults to 44100
	MasterVolume    *float32 // 0..1, nil means DefaultMasterVolume
	MaxPendingTasks int     // 0 = DefaultMaxPendingTasks, negative = unbounded
	Limiter         bool    // enable the output limiter
}

// Stats is a snapshot of mixer counters
type Stats struct {
	ActiveVoices int
	PendingTasks int
	MixedFrames  int64
	DroppedTasks int64
}

// voice is one live playback of a resource
type voice struct {
	resource *Resource
	id       Handle
	offset   int64
	volume   float32
	is3D     bool
	location Transform
}

// Mixer is the mixing context handed to an output driver. API methods are
// safe from any goroutine; MixSound and Reset must only be called from one
// goroutine at a time.
type Mixer struct {
	sampleRate int
	queue      *TaskQueue
	nextID     atomic.Uint64

	masterVolume atomic.Uint32 // float32 bits
	quit         atomic.Bool
	ok           atomic.Bool

	errMu   sync.Mutex
	errDesc string

	activeVoices atomic.Int32
	mixedFrames  atomic.Int64
	dropped      atomic.Int64

	// owned by the mixing goroutine
	voices   []voice
	listener listener
	batch    []Task
	scratch  []float32
	limiter  *limiter
}

// New creates a mixer
func New(cfg Config) *Mixer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.EngineSampleRate
	}
	volume := float32(DefaultMasterVolume)
	if cfg.MasterVolume != nil {
		volume = *cfg.MasterVolume
	}
	limit := cfg.MaxPendingTasks
	if limit == 0 {
		limit = DefaultMaxPendingTasks
	} else if limit < 0 {
		limit = 0
	}

	m := &Mixer{
		sampleRate: cfg.SampleRate,
		queue:      NewTaskQueue(limit),
		voices:     make([]voice, 0, 32),
		listener:   newListener(),
	}
	// Handles start at 2; 0 is InvalidHandle
	m.nextID.Store(1)
	m.ok.Store(true)
	m.SetMasterVolume(volume)
	if cfg.Limiter {
		m.limiter = newLimiter(cfg.SampleRate)
	}
	return m
}

// SampleRate returns the rate MixSound renders at
func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

// SetMasterVolume sets the gain applied to the whole mix, clamped to 0..1
func (m *Mixer) SetMasterVolume(v float32) {
	m.masterVolume.Store(math.Float32bits(clampUnit(v)))
}

// MasterVolume returns the current master gain
func (m *Mixer) MasterVolume() float32 {
	return math.Float32frombits(m.masterVolume.Load())
}

// SetError marks the mixer as failed. Drivers call it for fatal device
// errors; the description is kept for ErrorDescription.
func (m *Mixer) SetError(desc string) {
	if desc == "" {
		desc = defaultErrorDescription
	}
	log.Printf("Audio error: %s", desc)

	m.errMu.Lock()
	m.errDesc = desc
	m.errMu.Unlock()
	m.ok.Store(false)
}

// IsOk reports whether no fatal error has been recorded
func (m *Mixer) IsOk() bool {
	return m.ok.Load()
}

// ErrorDescription returns the last fatal error, or "" while ok
func (m *Mixer) ErrorDescription() string {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.errDesc
}

// RequestQuit asks the driver to stop at its next check
func (m *Mixer) RequestQuit() {
	m.quit.Store(true)
}

// QuitRequested reports whether the driver should shut down
func (m *Mixer) QuitRequested() bool {
	return m.quit.Load()
}

// Stats returns current counters
func (m *Mixer) Stats() Stats {
	return Stats{
		ActiveVoices: int(m.activeVoices.Load()),
		PendingTasks: m.queue.Len(),
		MixedFrames:  m.mixedFrames.Load(),
		DroppedTasks: m.dropped.Load(),
	}
}

// Reset stops every voice, discards queued tasks and clears the quit flag
// and error state. Only call it while no driver is mixing.
func (m *Mixer) Reset() {
	m.ReleaseAll()

	m.listener = newListener()
	m.activeVoices.Store(0)
	m.quit.Store(false)

	m.errMu.Lock()
	m.errDesc = ""
	m.errMu.Unlock()
	m.ok.Store(true)
}

// ReleaseAll force-stops every voice and discards queued tasks, leaving
// quit and error state alone. Only call it while no driver is mixing.
func (m *Mixer) ReleaseAll() {
	for i := len(m.voices) - 1; i >= 0; i-- {
		m.releaseVoice(i)
	}
	m.batch = m.queue.DrainAll(m.batch)
	clear(m.batch)
	m.batch = m.batch[:0]
	m.activeVoices.Store(0)
}

// drain applies every queued task in submission order
func (m *Mixer) drain() {
	m.batch = m.queue.DrainAll(m.batch)
	for i := range m.batch {
		m.applyTask(&m.batch[i])
	}
	clear(m.batch)
	m.batch = m.batch[:0]
}

func (m *Mixer) applyTask(t *Task) {
	switch t.Action {
	case ActionStart, ActionStart3D:
		if t.Resource == nil {
			return
		}
		t.Resource.playing.Add(1)
		m.voices = append(m.voices, voice{
			resource: t.Resource,
			id:       t.Target,
			volume:   t.Volume,
			is3D:     t.Action == ActionStart3D,
			location: t.Location,
		})

	case ActionStop:
		for i := 0; i < len(m.voices); i++ {
			if m.matches(&m.voices[i], t) {
				m.releaseVoice(i)
				i--
			}
		}

	case ActionSetLocation:
		for i := range m.voices {
			if m.matches(&m.voices[i], t) {
				m.voices[i].location = t.Location
			}
		}

	case ActionSetHeadLocation:
		m.listener.set(t.Location)
	}
}

// matches selects voices by handle when the task has one, else by resource
func (m *Mixer) matches(v *voice, t *Task) bool {
	if t.Target.IsValid() {
		return v.id == t.Target
	}
	return t.Resource != nil && v.resource == t.Resource
}

// releaseVoice decrements the resource counter and swap-removes voice i.
// Callers iterating forward must revisit index i.
func (m *Mixer) releaseVoice(i int) {
	m.voices[i].resource.playing.Add(-1)
	last := len(m.voices) - 1
	m.voices[i] = m.voices[last]
	m.voices[last] = voice{}
	m.voices = m.voices[:last]
}

func clampUnit(v float32) float32 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
