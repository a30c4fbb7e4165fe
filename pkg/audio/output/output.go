// ABOUTME: Audio output backend interface definitions
// ABOUTME: Common Host/Device/Stream contracts for callback-driven playback backends
package output

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
)

// ErrUnknownBackend is returned by NewHost for unrecognised backend names
var ErrUnknownBackend = errors.New("unknown audio backend")

// Host enumerates output devices for one backend
type Host interface {
	// Name returns the backend name ("malgo", "oto", "portaudio")
	Name() string

	// Devices performs a live enumeration; the slice index is the device index
	Devices() ([]Device, error)

	// Close releases backend resources
	Close() error
}

// Device is one output endpoint
type Device interface {
	// Name returns a human-readable device name
	Name() string

	// IsDefault reports whether the OS considers this the default output
	IsDefault() bool

	// DefaultConfig queries the device's default output configuration
	DefaultConfig() (DeviceConfig, error)

	// OpenStream builds a stopped stream bound to cb. cb.Format must match cfg.Format.
	OpenStream(cfg StreamConfig, cb Callback) (Stream, error)
}

// Stream is an open output stream. A Stream must be closed by the goroutine
// that opened it.
type Stream interface {
	// Play starts invoking the render callback
	Play() error

	// Close halts the callback and releases the stream
	Close() error
}

// DeviceConfig is a device's default output configuration
type DeviceConfig struct {
	SampleRate int
	Channels   int
	Format     audio.SampleFormat
}

// StreamConfig requests a stream configuration. BufferFrames of zero asks
// for the device's default buffer configuration.
type StreamConfig struct {
	SampleRate   int
	Channels     int
	Format       audio.SampleFormat
	BufferFrames int
}

// String formats the buffer configuration for logs
func (c StreamConfig) String() string {
	buffer := "Default"
	if c.BufferFrames > 0 {
		buffer = fmt.Sprintf("Fixed(%d)", c.BufferFrames)
	}
	return fmt.Sprintf("%dHz/%dch/%s/%s", c.SampleRate, c.Channels, c.Format, buffer)
}

// Callback is a render entry point tagged by encoding. Exactly one of the
// function fields is set. Each function fills the whole slice it receives
// with interleaved frames.
type Callback struct {
	Format audio.SampleFormat
	F32    func(out []float32)
	S16    func(out []int16)
	U16    func(out []uint16)
}

// Validate checks that the callback variant matches its format tag
func (cb Callback) Validate() error {
	switch cb.Format {
	case audio.FormatF32:
		if cb.F32 != nil {
			return nil
		}
	case audio.FormatS16:
		if cb.S16 != nil {
			return nil
		}
	case audio.FormatU16:
		if cb.U16 != nil {
			return nil
		}
	default:
		return fmt.Errorf("unsupported callback format: %s", cb.Format)
	}
	return fmt.Errorf("callback has no %s render function", cb.Format)
}

// DeviceInfo is a serialisable device listing entry
type DeviceInfo struct {
	ID        string `json:"id"`
	Index     int    `json:"index"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// List enumerates a host's devices into DeviceInfo entries
func List(h Host) ([]DeviceInfo, error) {
	devices, err := h.Devices()
	if err != nil {
		return nil, err
	}

	infos := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		infos[i] = DeviceInfo{
			ID:        FormatDeviceID(i),
			Index:     i,
			Name:      d.Name(),
			IsDefault: d.IsDefault(),
		}
	}
	return infos, nil
}

// Options configures backend construction
type Options struct {
	// OtoSampleRate and OtoChannels fix the single oto context format
	OtoSampleRate int
	OtoChannels   int

	Logger *slog.Logger
}

// NewHost creates the named backend
func NewHost(name string, opts Options) (Host, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	switch name {
	case "", "malgo":
		return NewMalgoHost(opts.Logger)
	case "oto":
		return NewOtoHost(opts.OtoSampleRate, opts.OtoChannels, opts.Logger), nil
	case "portaudio":
		return NewPortAudioHost(opts.Logger)
	default:
		return nil, fmt.Errorf("%w: %s (supported: malgo, oto, portaudio)", ErrUnknownBackend, name)
	}
}
