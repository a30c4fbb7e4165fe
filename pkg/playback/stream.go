// ABOUTME: Output stream negotiation with buffer-size fallback
// ABOUTME: Opens a started device stream bound to a fresh Renderer
package playback

import (
	"fmt"
	"log/slog"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output"
)

const (
	// 256 frames is about 5.3ms at 48kHz
	DefaultPreferredBufferFrames = 256
)

// DefaultFallbackBufferFrames are tried in order after the preferred size
var DefaultFallbackBufferFrames = []int{512, 1024}

// DeviceStreamConfig is the configuration a stream was opened with.
// BufferFrames of zero means the device default buffer was used.
type DeviceStreamConfig struct {
	SampleRate   int
	Channels     int
	BufferFrames int
	Format       audio.SampleFormat
}

// StreamObserver receives stream negotiation outcomes
type StreamObserver interface {
	StreamOpened(device string, cfg DeviceStreamConfig, attempts int)
	StreamFailed(device string, kind ErrorKind)
}

// StreamBuilder opens device streams, preferring a small fixed buffer
type StreamBuilder struct {
	PreferredBufferFrames int
	FallbackBufferFrames  []int
	Observer              StreamObserver
	Logger                *slog.Logger
}

// NewStreamBuilder returns a builder with the default buffer ladder
func NewStreamBuilder(logger *slog.Logger) *StreamBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamBuilder{
		PreferredBufferFrames: DefaultPreferredBufferFrames,
		FallbackBufferFrames:  append([]int(nil), DefaultFallbackBufferFrames...),
		Logger:                logger,
	}
}

// BufferCandidates returns the buffer sizes to try in order, ending with
// zero for the device default
func (b *StreamBuilder) BufferCandidates() []int {
	seen := make(map[int]bool)
	var candidates []int
	for _, frames := range append([]int{b.PreferredBufferFrames}, b.FallbackBufferFrames...) {
		if frames <= 0 || seen[frames] {
			continue
		}
		seen[frames] = true
		candidates = append(candidates, frames)
	}
	return append(candidates, 0)
}

// Build opens and starts a stream on dev that renders buf through trim at
// the device's default rate, channel count and format
func (b *StreamBuilder) Build(dev output.Device, buf *audio.Buffer, volume *Volume, trim Trim) (output.Stream, DeviceStreamConfig, error) {
	stream, cfg, err := b.build(dev, buf, volume, trim)
	if err != nil && b.Observer != nil {
		b.Observer.StreamFailed(dev.Name(), KindOf(err))
	}
	return stream, cfg, err
}

func (b *StreamBuilder) build(dev output.Device, buf *audio.Buffer, volume *Volume, trim Trim) (output.Stream, DeviceStreamConfig, error) {
	name := dev.Name()
	logger := b.logger().With("device", name)

	devCfg, err := dev.DefaultConfig()
	if err != nil {
		return nil, DeviceStreamConfig{}, fmt.Errorf("%w: %s: %v", ErrStreamConfig, name, err)
	}
	if !devCfg.Format.Supported() {
		return nil, DeviceStreamConfig{}, fmt.Errorf("%w: %s reports %s", ErrUnsupportedSampleFormat, name, devCfg.Format)
	}
	if devCfg.SampleRate <= 0 || devCfg.Channels <= 0 {
		return nil, DeviceStreamConfig{}, fmt.Errorf("%w: %s reports %dHz/%dch",
			ErrStreamConfig, name, devCfg.SampleRate, devCfg.Channels)
	}

	if devCfg.Channels > buf.Channels {
		logger.Warn("device has more output channels than source, extra channels will be silent",
			"device_channels", devCfg.Channels, "source_channels", buf.Channels)
	}

	renderer := NewRenderer(buf, volume, trim, devCfg.SampleRate, devCfg.Channels)
	cb, err := renderer.Callback(devCfg.Format)
	if err != nil {
		return nil, DeviceStreamConfig{}, err
	}

	var lastErr error
	candidates := b.BufferCandidates()
	for i, frames := range candidates {
		sc := output.StreamConfig{
			SampleRate:   devCfg.SampleRate,
			Channels:     devCfg.Channels,
			Format:       devCfg.Format,
			BufferFrames: frames,
		}

		stream, err := dev.OpenStream(sc, cb)
		if err != nil {
			logger.Debug("stream configuration rejected", "config", sc.String(), "error", err)
			lastErr = err
			continue
		}

		if frames == 0 {
			logger.Warn("fixed buffer sizes failed, using device default")
		} else if frames != b.PreferredBufferFrames {
			logger.Warn("using fallback buffer size", "buffer_frames", frames, "preferred", b.PreferredBufferFrames)
		}

		if err := stream.Play(); err != nil {
			_ = stream.Close()
			return nil, DeviceStreamConfig{}, fmt.Errorf("%w: %s: %v", ErrStreamStart, name, err)
		}

		cfg := DeviceStreamConfig{
			SampleRate:   devCfg.SampleRate,
			Channels:     devCfg.Channels,
			BufferFrames: frames,
			Format:       devCfg.Format,
		}
		logger.Info("playback stream created",
			"sample_rate", cfg.SampleRate,
			"channels", cfg.Channels,
			"buffer", sc.String(),
			"format", cfg.Format.String())

		if b.Observer != nil {
			b.Observer.StreamOpened(name, cfg, i+1)
		}
		return stream, cfg, nil
	}

	return nil, DeviceStreamConfig{}, fmt.Errorf("%w: %s: no buffer configuration accepted: %v", ErrStreamConfig, name, lastErr)
}

func (b *StreamBuilder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}
