//go:build portaudio

// ABOUTME: PortAudio output backend
// ABOUTME: Cross-platform device enumeration and callback streams using PortAudio
package output

import (
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
)

// PortAudioHost enumerates PortAudio output devices
type PortAudioHost struct {
	logger *slog.Logger
}

// NewPortAudioHost initializes PortAudio
func NewPortAudioHost(logger *slog.Logger) (Host, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &PortAudioHost{logger: logger}, nil
}

func (h *PortAudioHost) Name() string { return "portaudio" }

// Devices lists devices with at least one output channel
func (h *PortAudioHost) Devices() ([]Device, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate portaudio devices: %w", err)
	}

	var def *portaudio.DeviceInfo
	if d, err := portaudio.DefaultOutputDevice(); err == nil {
		def = d
	}

	var devices []Device
	for _, info := range all {
		if info.MaxOutputChannels <= 0 {
			continue
		}
		devices = append(devices, &portAudioDevice{
			info:      info,
			isDefault: def != nil && info.Name == def.Name && info.HostApi == def.HostApi,
		})
	}
	return devices, nil
}

func (h *PortAudioHost) Close() error {
	return portaudio.Terminate()
}

type portAudioDevice struct {
	info      *portaudio.DeviceInfo
	isDefault bool
}

func (d *portAudioDevice) Name() string    { return d.info.Name }
func (d *portAudioDevice) IsDefault() bool { return d.isDefault }

func (d *portAudioDevice) DefaultConfig() (DeviceConfig, error) {
	channels := d.info.MaxOutputChannels
	if channels > 2 {
		channels = 2
	}
	return DeviceConfig{
		SampleRate: int(d.info.DefaultSampleRate),
		Channels:   channels,
		Format:     audio.FormatF32,
	}, nil
}

func (d *portAudioDevice) OpenStream(cfg StreamConfig, cb Callback) (Stream, error) {
	if err := cb.Validate(); err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(nil, d.info)
	params.Output.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.BufferFrames

	var fn interface{}
	switch cfg.Format {
	case audio.FormatF32:
		fn = cb.F32
	case audio.FormatS16:
		fn = cb.S16
	default:
		return nil, fmt.Errorf("portaudio backend cannot open %s streams", cfg.Format)
	}

	stream, err := portaudio.OpenStream(params, fn)
	if err != nil {
		return nil, fmt.Errorf("failed to open portaudio stream on %q (%s): %w", d.info.Name, cfg, err)
	}
	return &portAudioStream{stream: stream}, nil
}

type portAudioStream struct {
	stream *portaudio.Stream
}

func (s *portAudioStream) Play() error {
	return s.stream.Start()
}

func (s *portAudioStream) Close() error {
	if s.stream == nil {
		return nil
	}
	_ = s.stream.Stop()
	err := s.stream.Close()
	s.stream = nil
	return err
}
