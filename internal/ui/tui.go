// ABOUTME: TUI initialization and event bridging
// ABOUTME: Wraps the bubbletea program and forwards engine events into it
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sonicdeck/sonicdeck-go/pkg/playback"
)

const eventBuffer = 256

// Events is a playback.Notifier that queues events for the view. Engine
// workers never block on it: a full queue drops progress-type events, and a
// terminal event displaces the oldest queued one so the view always ends.
type Events chan playback.Event

// NewEvents creates an event queue
func NewEvents() Events {
	return make(Events, eventBuffer)
}

// Notify queues ev without blocking
func (e Events) Notify(ev playback.Event) {
	for {
		select {
		case e <- ev:
			return
		default:
		}

		if !ev.IsTerminal() {
			return
		}
		select {
		case <-e:
		default:
		}
	}
}

// Run shows the view until the playback ends or the user quits, returning
// the final model
func Run(m Model, opts ...tea.ProgramOption) (Model, error) {
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return m, fmt.Errorf("tui failed: %w", err)
	}

	fm, ok := final.(Model)
	if !ok {
		return m, fmt.Errorf("unexpected tui model %T", final)
	}
	return fm, nil
}
