// ABOUTME: Oto-based output backend exposing the system default device
// ABOUTME: Streams pull rendered f32 samples through an oto player reader
package output

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
)

const (
	otoDefaultSampleRate = 48000
	otoDefaultChannels   = 2
	otoDeviceName        = "System Default"
)

// oto allows a single context per process
var (
	otoMu       sync.Mutex
	otoShared   *oto.Context
	otoRate     int
	otoChannels int
)

// OtoHost exposes the single oto output as one device
type OtoHost struct {
	sampleRate int
	channels   int
	logger     *slog.Logger
}

// NewOtoHost creates an oto host. The context is created on first stream
// open with the given rate and channel count.
func NewOtoHost(sampleRate, channels int, logger *slog.Logger) *OtoHost {
	if sampleRate <= 0 {
		sampleRate = otoDefaultSampleRate
	}
	if channels <= 0 {
		channels = otoDefaultChannels
	}
	return &OtoHost{sampleRate: sampleRate, channels: channels, logger: logger}
}

func (h *OtoHost) Name() string { return "oto" }

// Devices returns the single system default device
func (h *OtoHost) Devices() ([]Device, error) {
	return []Device{&otoDevice{host: h}}, nil
}

// Close is a no-op; the oto context lives for the process
func (h *OtoHost) Close() error { return nil }

func sharedOtoContext(sampleRate, channels int, logger *slog.Logger) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoShared != nil {
		if otoRate != sampleRate || otoChannels != channels {
			return nil, fmt.Errorf("oto context already running at %dHz/%dch, cannot open %dHz/%dch",
				otoRate, otoChannels, sampleRate, channels)
		}
		return otoShared, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoShared = ctx
	otoRate = sampleRate
	otoChannels = channels
	logger.Info("oto context initialized", "sample_rate", sampleRate, "channels", channels)
	return ctx, nil
}

type otoDevice struct {
	host *OtoHost
}

func (d *otoDevice) Name() string    { return otoDeviceName }
func (d *otoDevice) IsDefault() bool { return true }

func (d *otoDevice) DefaultConfig() (DeviceConfig, error) {
	return DeviceConfig{
		SampleRate: d.host.sampleRate,
		Channels:   d.host.channels,
		Format:     audio.FormatF32,
	}, nil
}

func (d *otoDevice) OpenStream(cfg StreamConfig, cb Callback) (Stream, error) {
	if err := cb.Validate(); err != nil {
		return nil, err
	}
	if cfg.Format != audio.FormatF32 {
		return nil, fmt.Errorf("oto backend cannot open %s streams", cfg.Format)
	}

	ctx, err := sharedOtoContext(cfg.SampleRate, cfg.Channels, d.host.logger)
	if err != nil {
		return nil, err
	}

	r := &callbackReader{
		w:          newByteWriter(cfg, cb),
		frameBytes: cfg.Channels * audio.FormatF32.BytesPerSample(),
	}
	player := ctx.NewPlayer(r)
	if cfg.BufferFrames > 0 {
		player.SetBufferSize(cfg.BufferFrames * r.frameBytes)
	}

	return &otoStream{player: player}, nil
}

// callbackReader turns the render callback into an io.Reader for oto
type callbackReader struct {
	w          *byteWriter
	frameBytes int
}

func (r *callbackReader) Read(p []byte) (int, error) {
	frames := len(p) / r.frameBytes
	if frames == 0 {
		return 0, nil
	}
	r.w.fill(p, frames)
	return frames * r.frameBytes, nil
}

type otoStream struct {
	player *oto.Player
}

func (s *otoStream) Play() error {
	s.player.Play()
	return nil
}

func (s *otoStream) Close() error {
	if s.player == nil {
		return nil
	}
	s.player.Pause()
	err := s.player.Close()
	s.player = nil
	return err
}
