// ABOUTME: In-memory output backend for tests
// ABOUTME: Records stream attempts and lets tests pull rendered samples by hand
// Package outputtest provides a scriptable output.Host for tests.
package outputtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output"
)

// ErrRejected is returned by OpenStream for rejected buffer sizes
var ErrRejected = errors.New("buffer size rejected")

// Host is a fake output.Host with a fixed device list
type Host struct {
	mu         sync.Mutex
	devices    []*Device
	devicesErr error
	closed     bool
}

// NewHost returns a host enumerating the given devices in order
func NewHost(devices ...*Device) *Host {
	return &Host{devices: devices}
}

func (h *Host) Name() string { return "fake" }

// FailDevices makes Devices return err
func (h *Host) FailDevices(err error) {
	h.mu.Lock()
	h.devicesErr = err
	h.mu.Unlock()
}

func (h *Host) Devices() ([]output.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.devicesErr != nil {
		return nil, h.devicesErr
	}
	out := make([]output.Device, len(h.devices))
	for i, d := range h.devices {
		out[i] = d
	}
	return out, nil
}

func (h *Host) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

// Closed reports whether Close was called
func (h *Host) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Device is a fake output.Device
type Device struct {
	mu        sync.Mutex
	name      string
	isDefault bool
	config    output.DeviceConfig
	configErr error
	rejected  map[int]bool
	playErr   error
	attempts  []output.StreamConfig
	streams   []*Stream
}

// NewDevice returns a device with the given default configuration
func NewDevice(name string, cfg output.DeviceConfig) *Device {
	return &Device{name: name, config: cfg, rejected: make(map[int]bool)}
}

// Stereo48k returns a 48kHz stereo f32 device
func Stereo48k(name string) *Device {
	return NewDevice(name, output.DeviceConfig{SampleRate: 48000, Channels: 2, Format: audio.FormatF32})
}

// AsDefault marks the device as the OS default
func (d *Device) AsDefault() *Device {
	d.isDefault = true
	return d
}

// Reject makes OpenStream fail for the given buffer sizes. Zero rejects the
// device-default buffer configuration.
func (d *Device) Reject(frames ...int) *Device {
	for _, f := range frames {
		d.rejected[f] = true
	}
	return d
}

// FailConfig makes DefaultConfig return err
func (d *Device) FailConfig(err error) *Device {
	d.configErr = err
	return d
}

// FailPlay makes Stream.Play return err
func (d *Device) FailPlay(err error) *Device {
	d.playErr = err
	return d
}

func (d *Device) Name() string    { return d.name }
func (d *Device) IsDefault() bool { return d.isDefault }

func (d *Device) DefaultConfig() (output.DeviceConfig, error) {
	if d.configErr != nil {
		return output.DeviceConfig{}, d.configErr
	}
	return d.config, nil
}

func (d *Device) OpenStream(cfg output.StreamConfig, cb output.Callback) (output.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.attempts = append(d.attempts, cfg)
	if err := cb.Validate(); err != nil {
		return nil, err
	}
	if cb.Format != cfg.Format {
		return nil, fmt.Errorf("callback format %s does not match stream format %s", cb.Format, cfg.Format)
	}
	if d.rejected[cfg.BufferFrames] {
		return nil, fmt.Errorf("%w: %s", ErrRejected, cfg)
	}

	s := &Stream{config: cfg, cb: cb, playErr: d.playErr}
	d.streams = append(d.streams, s)
	return s, nil
}

// Attempts returns every configuration passed to OpenStream
func (d *Device) Attempts() []output.StreamConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]output.StreamConfig(nil), d.attempts...)
}

// Streams returns every successfully opened stream
func (d *Device) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Stream(nil), d.streams...)
}

// LastStream returns the most recently opened stream, or nil
func (d *Device) LastStream() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// Stream is a fake output.Stream. Samples are rendered only when a test
// calls one of the Pull methods.
type Stream struct {
	mu      sync.Mutex
	config  output.StreamConfig
	cb      output.Callback
	playErr error
	playing bool
	closed  bool
}

// Config returns the configuration the stream was opened with
func (s *Stream) Config() output.StreamConfig { return s.config }

func (s *Stream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playErr != nil {
		return s.playErr
	}
	s.playing = true
	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.closed = true
	return nil
}

// Playing reports whether Play succeeded and Close has not been called
func (s *Stream) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Closed reports whether Close was called
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// PullF32 invokes the f32 callback for the given number of frames
func (s *Stream) PullF32(frames int) []float32 {
	out := make([]float32, frames*s.config.Channels)
	s.cb.F32(out)
	return out
}

// PullS16 invokes the s16 callback for the given number of frames
func (s *Stream) PullS16(frames int) []int16 {
	out := make([]int16, frames*s.config.Channels)
	s.cb.S16(out)
	return out
}

// PullU16 invokes the u16 callback for the given number of frames
func (s *Stream) PullU16(frames int) []uint16 {
	out := make([]uint16, frames*s.config.Channels)
	s.cb.U16(out)
	return out
}
