// ABOUTME: Sound task records passed from API callers to the mixer goroutine
// ABOUTME: Defines actions, voice handles and the immutable Task struct
package mixer

import "fmt"

// Action selects the mixer mutation a Task performs
type Action int

const (
	ActionStart Action = iota
	ActionStart3D
	ActionStop
	ActionSetLocation
	ActionSetHeadLocation
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionStart3D:
		return "start3d"
	case ActionStop:
		return "stop"
	case ActionSetLocation:
		return "set-location"
	case ActionSetHeadLocation:
		return "set-head-location"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Handle identifies one started voice
type Handle uint64

// InvalidHandle is returned when a start could not be queued
const InvalidHandle Handle = 0

// IsValid reports whether h refers to a voice that was queued
func (h Handle) IsValid() bool {
	return h != InvalidHandle
}

// Task is one queued mixer mutation. Start tasks carry the id of the voice
// they create in Target; Stop and SetLocation match by Target when it is
// valid and by Resource otherwise.
type Task struct {
	Action   Action
	Resource *Resource
	Volume   float32
	Location Transform
	Target   Handle
}
