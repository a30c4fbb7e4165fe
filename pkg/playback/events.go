// ABOUTME: Playback lifecycle notifications
// ABOUTME: Event payloads and Notifier fan-out
package playback

import "encoding/json"

// EventType names a notification
type EventType string

const (
	EventDecodeError    EventType = "decode-error"
	EventDecodeComplete EventType = "decode-complete"
	EventProgress       EventType = "progress"
	EventComplete       EventType = "complete"
	EventPlaybackError  EventType = "playback-error"
)

// Outcome distinguishes natural completion from an early stop
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
)

// Event is one notification. Fields not relevant to Type are zero.
type Event struct {
	Type       EventType  `json:"type"`
	PlaybackID PlaybackID `json:"playback_id"`
	ElapsedMs  uint64     `json:"elapsed_ms"`
	TotalMs    uint64     `json:"total_ms"`
	Percent    uint8      `json:"percent"`
	Outcome    Outcome    `json:"outcome"`
	Kind       ErrorKind  `json:"kind"`
	Reason     string     `json:"reason"`
}

// IsTerminal reports whether e is the last event of its playback
func (e Event) IsTerminal() bool {
	switch e.Type {
	case EventComplete, EventDecodeError, EventPlaybackError:
		return true
	}
	return false
}

// MarshalJSON emits only the fields that belong to the event type
func (e Event) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":        e.Type,
		"playback_id": e.PlaybackID,
	}
	switch e.Type {
	case EventProgress:
		m["elapsed_ms"] = e.ElapsedMs
		m["total_ms"] = e.TotalMs
		m["percent"] = e.Percent
	case EventComplete:
		m["outcome"] = e.Outcome
	case EventDecodeError:
		m["reason"] = e.Reason
	case EventPlaybackError:
		m["kind"] = e.Kind
		m["reason"] = e.Reason
	}
	return json.Marshal(m)
}

// Notifier receives events from playback workers. Notify is called on the
// worker goroutine and must not block for long.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// MultiNotifier fans events out to several notifiers in order
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(e)
		}
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(Event) {}

func progressEvent(id PlaybackID, elapsed, total uint64) Event {
	percent := uint64(100)
	if total > 0 {
		percent = min(elapsed*100/total, 100)
	}
	return Event{
		Type:       EventProgress,
		PlaybackID: id,
		ElapsedMs:  elapsed,
		TotalMs:    total,
		Percent:    uint8(percent),
	}
}
