// ABOUTME: Per-playback worker state machine
// ABOUTME: Decodes, opens both device streams and supervises until a terminal state
package playback

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output"
)

// State is a playback's lifecycle stage
type State int

const (
	StateRequested State = iota
	StateDecoding
	StateStreaming
	StateCompleted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateDecoding:
		return "decoding"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// session is owned by exactly one worker goroutine
type session struct {
	id     PlaybackID
	req    Request
	stop   <-chan struct{}
	volume *Volume
	engine *Engine
	logger *slog.Logger
	state  State
}

func (s *session) transition(to State) {
	s.logger.Debug("playback state", "from", s.state.String(), "to", to.String())
	s.state = to
}

// run is the worker body. Streams are opened and closed on this goroutine's
// locked OS thread.
func (s *session) run() {
	defer s.engine.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s.transition(StateDecoding)
	buf, err := s.engine.provider.GetOrDecode(s.req.Path)
	if err != nil {
		s.transition(StateFailed)
		s.engine.registry.Unregister(s.id)
		s.logger.Error("failed to decode audio", "path", s.req.Path, "error", err)
		s.engine.notifier.Notify(Event{
			Type:       EventDecodeError,
			PlaybackID: s.id,
			Reason:     fmt.Errorf("%w: %v", ErrDecode, err).Error(),
		})
		return
	}
	s.engine.notifier.Notify(Event{Type: EventDecodeComplete, PlaybackID: s.id})

	trim := NewTrim(buf, s.req.TrimStartMs, s.req.TrimEndMs)
	streamA, streamB, err := s.openStreams(buf, trim)
	if err != nil {
		s.transition(StateFailed)
		s.engine.registry.Unregister(s.id)
		s.logger.Error("failed to start playback", "error", err)
		s.engine.notifier.Notify(Event{
			Type:       EventPlaybackError,
			PlaybackID: s.id,
			Kind:       KindOf(err),
			Reason:     err.Error(),
		})
		return
	}

	s.transition(StateStreaming)
	outcome := s.supervise(trim.DurationMs(buf.SampleRate))

	_ = streamA.Close()
	_ = streamB.Close()
	s.engine.registry.Unregister(s.id)

	if outcome == OutcomeStopped {
		s.transition(StateStopped)
	} else {
		s.transition(StateCompleted)
	}
	s.logger.Info("playback finished", "outcome", string(outcome))
	s.engine.notifier.Notify(Event{Type: EventComplete, PlaybackID: s.id, Outcome: outcome})
}

// openStreams resolves both devices against a live enumeration and opens A
// then B. If B fails, A is closed before returning.
func (s *session) openStreams(buf *audio.Buffer, trim Trim) (output.Stream, output.Stream, error) {
	devices, err := s.engine.host.Devices()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: enumeration failed: %v", ErrDeviceNotFound, err)
	}

	devA, err := resolveDevice(devices, s.req.DeviceA)
	if err != nil {
		return nil, nil, err
	}
	devB, err := resolveDevice(devices, s.req.DeviceB)
	if err != nil {
		return nil, nil, err
	}

	streamA, _, err := s.engine.builder.Build(devA, buf, s.volume, trim)
	if err != nil {
		return nil, nil, fmt.Errorf("device A: %w", err)
	}

	streamB, _, err := s.engine.builder.Build(devB, buf, s.volume, trim)
	if err != nil {
		_ = streamA.Close()
		return nil, nil, fmt.Errorf("device B: %w", err)
	}

	return streamA, streamB, nil
}

func resolveDevice(devices []output.Device, id string) (output.Device, error) {
	idx, err := output.ParseDeviceID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}
	if idx >= len(devices) {
		return nil, fmt.Errorf("%w: %s (have %d devices)", ErrDeviceNotFound, id, len(devices))
	}
	return devices[idx], nil
}

// supervise ticks until the window has elapsed or a stop is observed
func (s *session) supervise(totalMs uint64) Outcome {
	ticker := s.engine.newTicker(s.engine.tickInterval)
	defer ticker.Stop()

	step := uint64(s.engine.tickInterval.Milliseconds())
	var elapsed uint64

	for elapsed < totalMs {
		select {
		case <-s.stop:
			return OutcomeStopped
		default:
		}

		select {
		case <-s.stop:
			return OutcomeStopped
		case <-ticker.C():
		}

		elapsed += step
		s.engine.notifier.Notify(progressEvent(s.id, elapsed, totalMs))
	}

	return OutcomeCompleted
}
