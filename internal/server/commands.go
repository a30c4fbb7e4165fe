// ABOUTME: Control command dispatch for the WebSocket server
// ABOUTME: Maps protocol requests onto engine and cache operations
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sonicdeck/sonicdeck-go/internal/protocol"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"github.com/sonicdeck/sonicdeck-go/pkg/playback"
)

// DefaultWaveformBuckets is used when audio/waveform omits buckets
const DefaultWaveformBuckets = 500

// commandError is a failure with a protocol error code
type commandError struct {
	code string
	err  error
}

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

func fail(code string, format string, args ...any) error {
	return &commandError{code: code, err: fmt.Errorf(format, args...)}
}

// handleClientMessage decodes and executes one request
func (s *Server) handleClientMessage(data []byte, logger *slog.Logger) protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Debug("error unmarshaling request", "error", err)
		return errorResponse(req, fail(protocol.CodeBadRequest, "invalid request: %v", err))
	}

	result, err := s.dispatch(&req)
	if s.config.Metrics != nil {
		s.config.Metrics.RecordCommand(req.Type, err == nil)
	}
	if err != nil {
		logger.Debug("command failed", "type", req.Type, "error", err)
		return errorResponse(req, err)
	}

	return protocol.Response{ID: req.ID, Type: req.Type, OK: true, Result: result}
}

func errorResponse(req protocol.Request, err error) protocol.Response {
	code := protocol.CodeInternal
	var ce *commandError
	if errors.As(err, &ce) {
		code = ce.code
	}
	return protocol.Response{
		ID:    req.ID,
		Type:  req.Type,
		Error: &protocol.ErrorInfo{Code: code, Message: err.Error()},
	}
}

func (s *Server) dispatch(req *protocol.Request) (any, error) {
	switch req.Type {
	case protocol.CommandPlaybackStart:
		return s.handleStart(req)
	case protocol.CommandPlaybackStop:
		return s.handleStop(req)
	case protocol.CommandPlaybackStopAll:
		return s.handleStopAll()
	case protocol.CommandPlaybackVolume:
		return s.handleVolume(req)
	case protocol.CommandDevicesList:
		return s.handleDevices()
	case protocol.CommandCacheStats:
		return s.handleCacheStats()
	case protocol.CommandCacheClear:
		return s.handleCacheClear()
	case protocol.CommandAudioWaveform:
		return s.handleWaveform(req)
	default:
		return nil, fail(protocol.CodeUnknownCommand, "unknown command: %q", req.Type)
	}
}

func (s *Server) requireEngine() (Engine, error) {
	e := s.currentEngine()
	if e == nil {
		return nil, fail(protocol.CodeUnavailable, "playback engine not ready")
	}
	return e, nil
}

func (s *Server) requireCache() (AudioCache, error) {
	if s.config.Cache == nil {
		return nil, fail(protocol.CodeUnavailable, "audio cache not configured")
	}
	return s.config.Cache, nil
}

func (s *Server) handleStart(req *protocol.Request) (any, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return nil, err
	}

	var p protocol.StartPlayback
	if err := req.Decode(&p); err != nil {
		return nil, fail(protocol.CodeBadRequest, "%v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fail(protocol.CodeBadRequest, "%v", err)
	}

	volume := s.config.DefaultVolume
	if p.Volume != nil {
		volume = *p.Volume
	}

	id, err := engine.StartDualPlayback(playback.Request{
		Path:        p.Path,
		DeviceA:     p.DeviceA,
		DeviceB:     p.DeviceB,
		Volume:      playback.ClampVolume(volume),
		TrimStartMs: p.TrimStartMs,
		TrimEndMs:   p.TrimEndMs,
	})
	if err != nil {
		if errors.Is(err, playback.ErrEngineClosed) {
			return nil, fail(protocol.CodeUnavailable, "%v", err)
		}
		return nil, err
	}

	return protocol.StartPlaybackResult{PlaybackID: id}, nil
}

func (s *Server) handleStop(req *protocol.Request) (any, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return nil, err
	}

	var p protocol.PlaybackTarget
	if err := req.Decode(&p); err != nil {
		return nil, fail(protocol.CodeBadRequest, "%v", err)
	}
	if !engine.Stop(p.PlaybackID) {
		return nil, fail(protocol.CodeNotFound, "playback not found: %s", p.PlaybackID)
	}
	return p, nil
}

func (s *Server) handleStopAll() (any, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return nil, err
	}
	return protocol.StopAllResult{Stopped: engine.StopAll()}, nil
}

func (s *Server) handleVolume(req *protocol.Request) (any, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return nil, err
	}

	var p protocol.SetVolume
	if err := req.Decode(&p); err != nil {
		return nil, fail(protocol.CodeBadRequest, "%v", err)
	}
	if !engine.SetVolume(p.PlaybackID, p.Volume) {
		return nil, fail(protocol.CodeNotFound, "playback not found: %s", p.PlaybackID)
	}
	p.Volume = playback.ClampVolume(p.Volume)
	return p, nil
}

func (s *Server) handleDevices() (any, error) {
	engine, err := s.requireEngine()
	if err != nil {
		return nil, err
	}

	devices, err := engine.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	return map[string]any{"devices": devices}, nil
}

func (s *Server) handleCacheStats() (any, error) {
	c, err := s.requireCache()
	if err != nil {
		return nil, err
	}
	return c.Stats(), nil
}

func (s *Server) handleCacheClear() (any, error) {
	c, err := s.requireCache()
	if err != nil {
		return nil, err
	}
	c.Clear()
	return c.Stats(), nil
}

func (s *Server) handleWaveform(req *protocol.Request) (any, error) {
	c, err := s.requireCache()
	if err != nil {
		return nil, err
	}

	p := protocol.WaveformRequest{Buckets: DefaultWaveformBuckets}
	if err := req.Decode(&p); err != nil {
		return nil, fail(protocol.CodeBadRequest, "%v", err)
	}
	if p.Path == "" {
		return nil, fail(protocol.CodeBadRequest, "path is required")
	}
	if p.Buckets <= 0 {
		p.Buckets = DefaultWaveformBuckets
	}

	buf, err := c.GetOrDecode(p.Path)
	if err != nil {
		return nil, fail(protocol.CodeDecode, "%v", err)
	}
	return audio.Peaks(buf, p.Buckets), nil
}
