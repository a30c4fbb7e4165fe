// ABOUTME: Malgo-based output backend with per-device stream negotiation
// ABOUTME: Uses miniaudio via malgo for device enumeration and callback playback
package output

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
)

const (
	// Scratch size used when the device picks its own period size
	defaultScratchFrames = 4096

	// Fallbacks when miniaudio reports "any" for a native format field
	malgoDefaultSampleRate = 48000
	malgoDefaultChannels   = 2
)

// MalgoHost enumerates playback devices through one miniaudio context
type MalgoHost struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	logger   *slog.Logger
}

// NewMalgoHost initializes a miniaudio context
func NewMalgoHost(logger *slog.Logger) (*MalgoHost, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	return &MalgoHost{
		malgoCtx: ctx,
		logger:   logger,
	}, nil
}

// Name returns the backend name
func (h *MalgoHost) Name() string { return "malgo" }

// Devices enumerates playback devices
func (h *MalgoHost) Devices() ([]Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.malgoCtx == nil {
		return nil, fmt.Errorf("malgo context closed")
	}

	infos, err := h.malgoCtx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}

	devices := make([]Device, len(infos))
	for i := range infos {
		devices[i] = &malgoDevice{host: h, info: infos[i]}
	}
	return devices, nil
}

// Close releases the miniaudio context
func (h *MalgoHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.malgoCtx != nil {
		if err := h.malgoCtx.Uninit(); err != nil {
			h.logger.Warn("malgo context uninit error", "error", err)
		}
		h.malgoCtx.Free()
		h.malgoCtx = nil
	}
	return nil
}

// malgoDevice is one enumerated miniaudio playback device
type malgoDevice struct {
	host *MalgoHost
	info malgo.DeviceInfo
}

func (d *malgoDevice) Name() string    { return d.info.Name() }
func (d *malgoDevice) IsDefault() bool { return d.info.IsDefault != 0 }

// DefaultConfig reads the device's first native data format
func (d *malgoDevice) DefaultConfig() (DeviceConfig, error) {
	d.host.mu.Lock()
	defer d.host.mu.Unlock()

	if d.host.malgoCtx == nil {
		return DeviceConfig{}, fmt.Errorf("malgo context closed")
	}

	full, err := d.host.malgoCtx.DeviceInfo(malgo.Playback, d.info.ID, malgo.Shared)
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("failed to query device %q: %w", d.Name(), err)
	}

	cfg := DeviceConfig{
		SampleRate: malgoDefaultSampleRate,
		Channels:   malgoDefaultChannels,
		Format:     audio.FormatF32,
	}

	if full.FormatCount > 0 {
		native := full.Formats[0]
		if native.SampleRate > 0 {
			cfg.SampleRate = int(native.SampleRate)
		}
		if native.Channels > 0 {
			cfg.Channels = int(native.Channels)
		}
		cfg.Format = sampleFormatFromMalgo(native.Format)
	}

	return cfg, nil
}

// OpenStream initializes a stopped miniaudio device bound to cb
func (d *malgoDevice) OpenStream(cfg StreamConfig, cb Callback) (Stream, error) {
	if err := cb.Validate(); err != nil {
		return nil, err
	}

	format, err := malgoFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	d.host.mu.Lock()
	defer d.host.mu.Unlock()

	if d.host.malgoCtx == nil {
		return nil, fmt.Errorf("malgo context closed")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.Playback.DeviceID = d.info.ID.Pointer()
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if cfg.BufferFrames > 0 {
		deviceConfig.PeriodSizeInFrames = uint32(cfg.BufferFrames)
	}

	w := newByteWriter(cfg, cb)
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			w.fill(pOutput, int(frameCount))
		},
	}

	device, err := malgo.InitDevice(d.host.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback device %q (%s): %w", d.Name(), cfg, err)
	}

	return &malgoStream{device: device, logger: d.host.logger}, nil
}

// malgoStream wraps an initialized miniaudio device
type malgoStream struct {
	device *malgo.Device
	logger *slog.Logger
}

func (s *malgoStream) Play() error {
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

func (s *malgoStream) Close() error {
	if s.device == nil {
		return nil
	}
	if err := s.device.Stop(); err != nil {
		s.logger.Warn("device stop error", "error", err)
	}
	s.device.Uninit()
	s.device = nil
	return nil
}

// byteWriter renders typed samples into scratch memory and encodes them
// little-endian into a backend's byte buffer. Scratch is sized up front and
// only grows if the backend requests more frames than any earlier call.
type byteWriter struct {
	channels int
	cb       Callback
	f32      []float32
	s16      []int16
	u16      []uint16
}

func newByteWriter(cfg StreamConfig, cb Callback) *byteWriter {
	frames := cfg.BufferFrames
	if frames <= 0 {
		frames = defaultScratchFrames
	}

	w := &byteWriter{channels: cfg.Channels, cb: cb}
	w.grow(frames * cfg.Channels)
	return w
}

func (w *byteWriter) grow(n int) {
	switch w.cb.Format {
	case audio.FormatF32:
		if cap(w.f32) < n {
			w.f32 = make([]float32, n)
		}
	case audio.FormatS16:
		if cap(w.s16) < n {
			w.s16 = make([]int16, n)
		}
	case audio.FormatU16:
		if cap(w.u16) < n {
			w.u16 = make([]uint16, n)
		}
	}
}

// fill renders frames into out, which holds at least frames*channels samples
func (w *byteWriter) fill(out []byte, frames int) {
	n := frames * w.channels
	w.grow(n)

	switch w.cb.Format {
	case audio.FormatF32:
		buf := w.f32[:n]
		w.cb.F32(buf)
		for i, v := range buf {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
		}
	case audio.FormatS16:
		buf := w.s16[:n]
		w.cb.S16(buf)
		for i, v := range buf {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		}
	case audio.FormatU16:
		buf := w.u16[:n]
		w.cb.U16(buf)
		for i, v := range buf {
			binary.LittleEndian.PutUint16(out[i*2:], v)
		}
	}
}

// sampleFormatFromMalgo maps a device's native format onto a render encoding.
// Wider integer formats are served as f32 and converted by miniaudio.
func sampleFormatFromMalgo(format malgo.FormatType) audio.SampleFormat {
	switch format {
	case malgo.FormatF32, malgo.FormatS24, malgo.FormatS32, malgo.FormatUnknown:
		return audio.FormatF32
	case malgo.FormatS16:
		return audio.FormatS16
	default:
		return audio.FormatUnknown
	}
}

// malgoFormat maps a render encoding to miniaudio's format type
func malgoFormat(format audio.SampleFormat) (malgo.FormatType, error) {
	switch format {
	case audio.FormatF32:
		return malgo.FormatF32, nil
	case audio.FormatS16:
		return malgo.FormatS16, nil
	default:
		return malgo.FormatUnknown, fmt.Errorf("malgo backend cannot open %s streams", format)
	}
}
