// ABOUTME: Bubbletea model for the playback progress view
// ABOUTME: Renders one playback's progress bar and routes volume and stop keys
package ui

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sonicdeck/sonicdeck-go/pkg/playback"
)

const (
	volumeStep    = 0.05
	maxBarWidth   = 60
	barPadding    = 4
	defaultWidth  = 40
	truncateWidth = 48
)

// Controller is the engine surface the view drives
type Controller interface {
	SetVolume(id playback.PlaybackID, v float32) bool
	Stop(id playback.PlaybackID) bool
}

// Info describes the playback shown by the view
type Info struct {
	PlaybackID playback.PlaybackID
	Path       string
	DeviceA    string
	DeviceB    string
	Volume     float32
}

// EventMsg delivers a playback event to the model
type EventMsg playback.Event

// Model represents the TUI state
type Model struct {
	info    Info
	control Controller
	events  <-chan playback.Event
	keys    keyMap
	bar     progress.Model

	// Playback
	volume    float32
	decoded   bool
	elapsedMs uint64
	totalMs   uint64
	percent   uint8

	// Terminal state
	finished bool
	stopping bool
	outcome  playback.Outcome
	errText  string

	width int
}

// NewModel creates a view for one playback. events may be nil when the
// caller feeds EventMsg values itself.
func NewModel(info Info, control Controller, events <-chan playback.Event) Model {
	return Model{
		info:    info,
		control: control,
		events:  events,
		keys:    defaultKeyMap(),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultWidth)),
		volume:  playback.ClampVolume(info.Volume),
	}
}

// Init starts listening for events
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

// waitForEvent blocks until the next event arrives
func waitForEvent(events <-chan playback.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return EventMsg(e)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-barPadding*2, 10), maxBarWidth)
	case EventMsg:
		return m.applyEvent(playback.Event(msg))
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if !m.finished && m.control != nil {
			m.control.Stop(m.info.PlaybackID)
		}
		m.stopping = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.VolumeUp):
		m.setVolume(m.volume + volumeStep)
	case key.Matches(msg, m.keys.VolumeDown):
		m.setVolume(m.volume - volumeStep)
	}

	return m, nil
}

func (m *Model) setVolume(v float32) {
	v = playback.ClampVolume(float32(math.Round(float64(v)*100) / 100))
	if v == m.volume || m.finished {
		return
	}
	if m.control != nil && !m.control.SetVolume(m.info.PlaybackID, v) {
		return
	}
	m.volume = v
}

// applyEvent updates the model from an event for this playback
func (m Model) applyEvent(e playback.Event) (tea.Model, tea.Cmd) {
	if e.PlaybackID != m.info.PlaybackID {
		return m, waitForEvent(m.events)
	}

	switch e.Type {
	case playback.EventDecodeComplete:
		m.decoded = true
	case playback.EventProgress:
		m.elapsedMs = e.ElapsedMs
		m.totalMs = e.TotalMs
		m.percent = e.Percent
	case playback.EventComplete:
		m.finished = true
		m.outcome = e.Outcome
		if e.Outcome == playback.OutcomeCompleted {
			m.percent = 100
			m.elapsedMs = m.totalMs
		}
		return m, tea.Quit
	case playback.EventDecodeError:
		m.finished = true
		m.errText = "decode failed: " + e.Reason
		return m, tea.Quit
	case playback.EventPlaybackError:
		m.finished = true
		m.errText = fmt.Sprintf("%s: %s", e.Kind, e.Reason)
		return m, tea.Quit
	}

	return m, waitForEvent(m.events)
}

// Finished reports whether the playback reached a terminal event
func (m Model) Finished() bool { return m.finished }

// Outcome returns the completion outcome, empty until complete
func (m Model) Outcome() playback.Outcome { return m.outcome }

// Err returns the failure text, empty unless the playback failed
func (m Model) Err() string { return m.errText }

// Volume returns the view's current volume
func (m Model) Volume() float32 { return m.volume }

// View renders the TUI
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205"))

	labelStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	errorStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196"))

	var b strings.Builder

	b.WriteString(titleStyle.Render(truncate(filepath.Base(m.info.Path), truncateWidth)))
	b.WriteString(valueStyle.Render("  " + string(m.info.PlaybackID)))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Outputs: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("A=%s  B=%s", m.info.DeviceA, m.info.DeviceB)))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Volume:  "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%3.0f%%", m.volume*100)))
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(float64(m.percent) / 100))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s / %s", formatMs(m.elapsedMs), formatMs(m.totalMs))))
	b.WriteString("\n\n")

	switch {
	case m.errText != "":
		b.WriteString(errorStyle.Render(m.errText))
	case m.finished:
		b.WriteString(labelStyle.Render(string(m.outcome)))
	case m.stopping:
		b.WriteString(valueStyle.Render("stopping..."))
	case !m.decoded:
		b.WriteString(valueStyle.Render("decoding..."))
	default:
		b.WriteString(lipgloss.NewStyle().Faint(true).Render(m.keys.helpLine()))
	}
	b.WriteString("\n")

	return b.String()
}

func formatMs(ms uint64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d.%d", int(d.Minutes()), int(d.Seconds())%60, (ms%1000)/100)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
