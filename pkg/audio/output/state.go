// ABOUTME: Driver lifecycle state machine
// ABOUTME: Atomic state with validated transitions shared by every backend
package output

import (
	"fmt"
	"sync/atomic"
)

// State is a driver lifecycle state
type State int32

const (
	StateUninitialized State = iota
	StateOpening
	StateRunning
	StateSuspended
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOpening:
		return "opening"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// transitions lists the states reachable from each state
var transitions = map[State][]State{
	StateUninitialized: {StateOpening},
	StateOpening:       {StateRunning, StateSuspended, StateClosing},
	StateRunning:       {StateSuspended, StateClosing},
	StateSuspended:     {StateRunning, StateClosing},
	StateClosing:       {StateClosed},
	StateClosed:        {StateOpening},
}

// CanTransition reports whether from -> to is a legal transition
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type stateMachine struct {
	v atomic.Int32
}

func (m *stateMachine) get() State {
	return State(m.v.Load())
}

// to moves to next, failing if the transition is not legal from the
// current state
func (m *stateMachine) to(next State) error {
	for {
		cur := State(m.v.Load())
		if !CanTransition(cur, next) {
			return fmt.Errorf("invalid driver state transition: %s -> %s", cur, next)
		}
		if m.v.CompareAndSwap(int32(cur), int32(next)) {
			return nil
		}
	}
}

// shutdown walks any open state through Closing to Closed. It returns false
// if the driver was never opened or is already closed.
func (m *stateMachine) shutdown() bool {
	if m.to(StateClosing) != nil {
		return false
	}
	m.v.Store(int32(StateClosed))
	return true
}
