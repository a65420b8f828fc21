// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Defines display state, key handling and the status rendering
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const volumeStep = 5

// Model represents the TUI state
type Model struct {
	// Output
	driver  string
	device  string
	state   string
	ok      bool
	errDesc string

	// Volume, in percent
	volume      int
	muted       bool
	mutedVolume int

	// Sounds
	sounds     []string
	selected   int
	lastPlayed string

	// Stats
	activeVoices int
	pendingTasks int
	droppedTasks int64
	mixedFrames  int64
	sampleRate   int

	control *Control

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Chime Player"))
	b.WriteString("\n\n")
	b.WriteString(m.renderOutput())
	b.WriteString("\n")
	b.WriteString(m.renderVolume())
	b.WriteString("\n\n")
	b.WriteString(m.renderSounds())
	b.WriteString("\n")
	b.WriteString(m.renderStats())
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render(helpText))

	return frameStyle.Render(b.String())
}

const helpText = "↑/↓:Volume  m:Mute  ←/→/tab:Select  enter/space:Play  s:Stop  q:Quit"

func field(name, value string) string {
	return headerStyle.Render(name+": ") + valueStyle.Render(value)
}

// renderOutput renders driver, device and health
func (m Model) renderOutput() string {
	device := m.device
	if device == "" {
		device = "default"
	}

	health := valueStyle.Render("OK")
	if !m.ok {
		health = errorStyle.Render("ERROR " + truncate(m.errDesc, 48))
	}

	return field("Driver", m.driver) + "\n" +
		field("Device", truncate(device, 48)) + "\n" +
		field("State", m.state) + "\n" +
		headerStyle.Render("Health: ") + health
}

// renderVolume renders the master volume bar
func (m Model) renderVolume() string {
	muteText := ""
	if m.muted {
		muteText = " (muted)"
	}
	return headerStyle.Render("Volume: ") +
		valueStyle.Render(fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 20), m.volume, muteText))
}

// renderSounds renders the selectable sound list
func (m Model) renderSounds() string {
	if len(m.sounds) == 0 {
		return valueStyle.Render("No sounds loaded")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Sounds (%d)", len(m.sounds))))
	b.WriteString("\n")
	for i, name := range m.sounds {
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + name))
		} else {
			b.WriteString(valueStyle.Render("  " + name))
		}
		b.WriteString("\n")
	}
	if m.lastPlayed != "" {
		b.WriteString(valueStyle.Render("Last played: " + m.lastPlayed))
		b.WriteString("\n")
	}
	return b.String()
}

// renderStats renders mixer counters
func (m Model) renderStats() string {
	seconds := 0.0
	if m.sampleRate > 0 {
		seconds = float64(m.mixedFrames) / float64(m.sampleRate)
	}
	return field("Voices", fmt.Sprintf("%d", m.activeVoices)) + "  " +
		field("Pending", fmt.Sprintf("%d", m.pendingTasks)) + "  " +
		field("Dropped", fmt.Sprintf("%d", m.droppedTasks)) + "  " +
		field("Mixed", fmt.Sprintf("%.1fs", seconds))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.control != nil {
			select {
			case m.control.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit

	case "up":
		m.setVolume(min(m.volume+volumeStep, 100))
	case "down":
		m.setVolume(max(m.volume-volumeStep, 0))
	case "m":
		if m.muted {
			m.muted = false
			m.setVolume(m.mutedVolume)
		} else {
			m.mutedVolume = m.volume
			m.muted = true
			m.send(Action{Kind: ActionVolume, Volume: 0})
		}

	case "left", "shift+tab":
		if len(m.sounds) > 0 {
			m.selected = (m.selected - 1 + len(m.sounds)) % len(m.sounds)
		}
	case "right", "tab":
		if len(m.sounds) > 0 {
			m.selected = (m.selected + 1) % len(m.sounds)
		}

	case "enter", " ":
		if name := m.selectedSound(); name != "" {
			m.lastPlayed = name
			m.send(Action{Kind: ActionPlay, Sound: name})
		}
	case "s":
		if name := m.selectedSound(); name != "" {
			m.send(Action{Kind: ActionStop, Sound: name})
		}
	}

	return m, nil
}

// setVolume changes the displayed volume and requests it; muted volume
// changes are remembered for unmute
func (m *Model) setVolume(percent int) {
	if m.muted {
		m.mutedVolume = percent
		m.volume = percent
		return
	}
	m.volume = percent
	m.send(Action{Kind: ActionVolume, Volume: float32(percent) / 100})
}

func (m Model) selectedSound() string {
	if m.selected < 0 || m.selected >= len(m.sounds) {
		return ""
	}
	return m.sounds[m.selected]
}

func (m Model) send(a Action) {
	if m.control == nil {
		return
	}
	select {
	case m.control.Actions <- a:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Driver != "" {
		m.driver = msg.Driver
	}
	if msg.Device != "" {
		m.device = msg.Device
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Ok != nil {
		m.ok = *msg.Ok
		m.errDesc = msg.Error
	}
	if msg.Volume != nil && !m.muted {
		m.volume = int(*msg.Volume*100 + 0.5)
	}
	if msg.Sounds != nil {
		current := m.selectedSound()
		m.sounds = msg.Sounds
		m.selected = 0
		for i, name := range m.sounds {
			if name == current {
				m.selected = i
				break
			}
		}
	}
	if msg.SampleRate != 0 {
		m.sampleRate = msg.SampleRate
	}

	m.activeVoices = msg.ActiveVoices
	m.pendingTasks = msg.PendingTasks
	m.droppedTasks = msg.DroppedTasks
	m.mixedFrames = msg.MixedFrames
}

// StatusMsg updates TUI state. Nil pointers and empty strings leave the
// current value; counters always apply.
type StatusMsg struct {
	Driver       string
	Device       string
	State        string
	Ok           *bool
	Error        string
	Volume       *float32
	Sounds       []string
	SampleRate   int
	ActiveVoices int
	PendingTasks int
	DroppedTasks int64
	MixedFrames  int64
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
