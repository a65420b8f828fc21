// ABOUTME: Sound API callable from any goroutine
// ABOUTME: Each call becomes a task that the mixer applies on its next drain
package mixer

// StartSound plays r once at the given volume (0..1). The returned handle
// is InvalidHandle when r is nil or the task queue is full.
func (m *Mixer) StartSound(r *Resource, volume float32) Handle {
	return m.start(ActionStart, r, volume, Transform{})
}

// StartSoundAtPosition plays r as a positional voice at pos
func (m *Mixer) StartSoundAtPosition(r *Resource, volume float32, pos Vec3) Handle {
	return m.start(ActionStart3D, r, volume, At(pos))
}

func (m *Mixer) start(action Action, r *Resource, volume float32, loc Transform) Handle {
	if r == nil {
		return InvalidHandle
	}
	h := Handle(m.nextID.Add(1))
	ok := m.push(Task{
		Action:   action,
		Resource: r,
		Volume:   clampUnit(volume),
		Location: loc,
		Target:   h,
	})
	if !ok {
		return InvalidHandle
	}
	return h
}

// StopSound stops every voice playing r
func (m *Mixer) StopSound(r *Resource) {
	if r == nil {
		return
	}
	m.push(Task{Action: ActionStop, Resource: r})
}

// StopHandle stops the voice started with h. Stopping a voice that already
// finished does nothing.
func (m *Mixer) StopHandle(h Handle) {
	if !h.IsValid() {
		return
	}
	m.push(Task{Action: ActionStop, Target: h})
}

// SetSoundListenerLocation moves and orients the listener
func (m *Mixer) SetSoundListenerLocation(loc Transform) {
	m.push(Task{Action: ActionSetHeadLocation, Location: loc})
}

// SetSoundSourcePosition moves every voice playing r
func (m *Mixer) SetSoundSourcePosition(r *Resource, pos Vec3) {
	if r == nil {
		return
	}
	m.push(Task{Action: ActionSetLocation, Resource: r, Location: At(pos)})
}

// SetHandlePosition moves the voice started with h
func (m *Mixer) SetHandlePosition(h Handle, pos Vec3) {
	if !h.IsValid() {
		return
	}
	m.push(Task{Action: ActionSetLocation, Target: h, Location: At(pos)})
}

func (m *Mixer) push(t Task) bool {
	if !m.queue.Push(t) {
		m.dropped.Add(1)
		return false
	}
	return true
}
