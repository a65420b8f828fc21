// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels that carry user actions out
package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// ActionKind selects what a user action does
type ActionKind int

const (
	ActionPlay ActionKind = iota
	ActionStop
	ActionVolume
)

// Action is a user request from the TUI
type Action struct {
	Kind   ActionKind
	Sound  string
	Volume float32 // 0-1, for ActionVolume
}

// QuitMsg signals that the user asked to quit
type QuitMsg struct{}

// Control holds channels for actions leaving the TUI
type Control struct {
	Actions chan Action
	Quit    chan QuitMsg
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Actions: make(chan Action, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(control *Control) Model {
	return Model{
		volume:  100,
		state:   "uninitialized",
		ok:      true,
		control: control,
	}
}

// TUI runs the player interface
type TUI struct {
	program *tea.Program
	updates chan StatusMsg
	done    chan struct{}
	once    sync.Once
}

// New creates a TUI that reports user actions on control
func New(control *Control) *TUI {
	t := &TUI{
		updates: make(chan StatusMsg, 10),
		done:    make(chan struct{}),
	}
	t.program = tea.NewProgram(NewModel(control), tea.WithAltScreen())
	return t
}

// Run blocks until the user quits or Stop is called
func (t *TUI) Run() error {
	go func() {
		for {
			select {
			case status := <-t.updates:
				t.program.Send(status)
			case <-t.done:
				return
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI without blocking
func (t *TUI) Update(status StatusMsg) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop quits the program
func (t *TUI) Stop() {
	t.once.Do(func() { close(t.done) })
	t.program.Quit()
}
