// ABOUTME: SonicDeck control protocol message type definitions
// ABOUTME: Defines the command, response and event envelopes sent over WebSocket
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/sonicdeck/sonicdeck-go/pkg/playback"
)

// Version is the control protocol version reported in server/hello
const Version = 1

// Command types accepted from clients
const (
	CommandPlaybackStart   = "playback/start"
	CommandPlaybackStop    = "playback/stop"
	CommandPlaybackStopAll = "playback/stop_all"
	CommandPlaybackVolume  = "playback/volume"
	CommandDevicesList     = "devices/list"
	CommandCacheStats      = "cache/stats"
	CommandCacheClear      = "cache/clear"
	CommandAudioWaveform   = "audio/waveform"
)

// Message types sent by the server
const (
	TypeServerHello   = "server/hello"
	TypePlaybackEvent = "playback/event"
)

// Error codes carried by failed responses
const (
	CodeBadRequest     = "bad_request"
	CodeUnknownCommand = "unknown_command"
	CodeNotFound       = "not_found"
	CodeDecode         = "decode"
	CodeUnavailable    = "unavailable"
	CodeInternal       = "internal"
)

// Request is a command sent by a client. ID is echoed in the response.
type Request struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v. A missing payload leaves v untouched.
func (r *Request) Decode(v any) error {
	if len(r.Payload) == 0 || string(r.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", r.Type, err)
	}
	return nil
}

// Response answers one Request
type Response struct {
	ID     string     `json:"id,omitempty"`
	Type   string     `json:"type"`
	OK     bool       `json:"ok"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed command
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Message is an unsolicited server message
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServerHello is sent to every client on connect
type ServerHello struct {
	ServerID     string `json:"server_id"`
	ClientID     string `json:"client_id"`
	Name         string `json:"name"`
	Version      int    `json:"version"`
	Product      string `json:"product"`
	Manufacturer string `json:"manufacturer"`
	Software     string `json:"software_version"`
}

// StartPlayback is the playback/start payload
type StartPlayback struct {
	Path        string   `json:"path"`
	DeviceA     string   `json:"device_a"`
	DeviceB     string   `json:"device_b"`
	Volume      *float32 `json:"volume,omitempty"`
	TrimStartMs *uint64  `json:"trim_start_ms,omitempty"`
	TrimEndMs   *uint64  `json:"trim_end_ms,omitempty"`
}

// Validate checks the required fields
func (p StartPlayback) Validate() error {
	switch {
	case p.Path == "":
		return fmt.Errorf("path is required")
	case p.DeviceA == "":
		return fmt.Errorf("device_a is required")
	case p.DeviceB == "":
		return fmt.Errorf("device_b is required")
	}
	return nil
}

// StartPlaybackResult is the playback/start result
type StartPlaybackResult struct {
	PlaybackID playback.PlaybackID `json:"playback_id"`
}

// PlaybackTarget names one playback
type PlaybackTarget struct {
	PlaybackID playback.PlaybackID `json:"playback_id"`
}

// SetVolume is the playback/volume payload
type SetVolume struct {
	PlaybackID playback.PlaybackID `json:"playback_id"`
	Volume     float32             `json:"volume"`
}

// StopAllResult is the playback/stop_all result
type StopAllResult struct {
	Stopped int `json:"stopped"`
}

// WaveformRequest is the audio/waveform payload
type WaveformRequest struct {
	Path    string `json:"path"`
	Buckets int    `json:"buckets"`
}
