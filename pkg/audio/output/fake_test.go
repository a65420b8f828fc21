// ABOUTME: Test doubles for driver tests
// ABOUTME: A constant renderer and a device that replays scripted write errors
package output

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeRenderer renders value on the left and -value on the right
type fakeRenderer struct {
	value     float32
	quitAfter int

	mu      sync.Mutex
	calls   int
	sizes   []int
	strides []int
	errDesc string
	quit    atomic.Bool
}

func (f *fakeRenderer) MixSound(outL, outR []float32, stride, frames int, scratch []float32) {
	for i := 0; i < frames; i++ {
		outL[i*stride] = f.value
		outR[i*stride] = -f.value
	}

	f.mu.Lock()
	f.calls++
	f.sizes = append(f.sizes, frames)
	f.strides = append(f.strides, stride)
	done := f.quitAfter > 0 && f.calls >= f.quitAfter
	f.mu.Unlock()

	if done {
		f.quit.Store(true)
	}
}

func (f *fakeRenderer) SetError(desc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errDesc = desc
}

func (f *fakeRenderer) QuitRequested() bool { return f.quit.Load() }
func (f *fakeRenderer) RequestQuit()        { f.quit.Store(true) }

func (f *fakeRenderer) error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errDesc
}

func (f *fakeRenderer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// scriptedDevice returns writeErrs and resumeErrs in order, then nil
type scriptedDevice struct {
	mu         sync.Mutex
	openErr    error
	rate       int   // rate reported by Open
	always     error // returned by every Write once set
	writeErrs  []error
	resumeErrs []error
	prepareErr error

	opened   bool
	closed   bool
	writes   int
	prepares int
	resumes  int
	last     []byte
}

func (d *scriptedDevice) Open(cfg Config) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return 0, d.openErr
	}
	d.opened = true
	return d.rate, nil
}

func (d *scriptedDevice) Write(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.always != nil {
		return d.always
	}
	if len(d.writeErrs) > 0 {
		err := d.writeErrs[0]
		d.writeErrs = d.writeErrs[1:]
		if err != nil {
			return err
		}
	}
	d.writes++
	d.last = append(d.last[:0], buf...)
	return nil
}

func (d *scriptedDevice) prepareCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prepares
}

func (d *scriptedDevice) Prepare() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prepares++
	return d.prepareErr
}

func (d *scriptedDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumes++
	if len(d.resumeErrs) > 0 {
		err := d.resumeErrs[0]
		d.resumeErrs = d.resumeErrs[1:]
		return err
	}
	return nil
}

func (d *scriptedDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}
