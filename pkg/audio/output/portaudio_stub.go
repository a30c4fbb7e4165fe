//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"
	"log/slog"
)

// ErrPortAudioDisabled is returned when the binary was built without PortAudio
var ErrPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// NewPortAudioHost reports that PortAudio is unavailable
func NewPortAudioHost(_ *slog.Logger) (Host, error) {
	return nil, ErrPortAudioDisabled
}
