// ABOUTME: Tests for stream negotiation
// ABOUTME: Covers buffer fallback order, format rejection and start failures
package playback

import (
	"errors"
	"sync"
	"testing"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output/outputtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observedStream struct {
	device   string
	cfg      DeviceStreamConfig
	attempts int
}

type recordingObserver struct {
	mu     sync.Mutex
	opened []observedStream
	failed []ErrorKind
}

func (o *recordingObserver) StreamOpened(device string, cfg DeviceStreamConfig, attempts int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, observedStream{device, cfg, attempts})
}

func (o *recordingObserver) StreamFailed(_ string, kind ErrorKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, kind)
}

func bufferFrames(attempts []output.StreamConfig) []int {
	frames := make([]int, len(attempts))
	for i, a := range attempts {
		frames[i] = a.BufferFrames
	}
	return frames
}

func TestBuildPrefersSmallFixedBuffer(t *testing.T) {
	buf := rampBuffer(t, 480, 2, 48000)
	dev := outputtest.Stereo48k("Speakers")
	obs := &recordingObserver{}

	b := NewStreamBuilder(nil)
	b.Observer = obs

	stream, cfg, err := b.Build(dev, buf, NewVolume(1), fullTrim(buf))
	require.NoError(t, err)
	require.NotNil(t, stream)

	assert.Equal(t, []int{256}, bufferFrames(dev.Attempts()))
	assert.Equal(t, DeviceStreamConfig{SampleRate: 48000, Channels: 2, BufferFrames: 256, Format: audio.FormatF32}, cfg)
	assert.True(t, dev.LastStream().Playing())

	require.Len(t, obs.opened, 1)
	assert.Equal(t, "Speakers", obs.opened[0].device)
	assert.Equal(t, 1, obs.opened[0].attempts)
}

func TestBuildFallbackSequence(t *testing.T) {
	buf := rampBuffer(t, 480, 2, 48000)

	t.Run("second fallback", func(t *testing.T) {
		dev := outputtest.Stereo48k("USB").Reject(256, 512)
		_, cfg, err := NewStreamBuilder(nil).Build(dev, buf, NewVolume(1), fullTrim(buf))
		require.NoError(t, err)
		assert.Equal(t, []int{256, 512, 1024}, bufferFrames(dev.Attempts()))
		assert.Equal(t, 1024, cfg.BufferFrames)
	})

	t.Run("device default", func(t *testing.T) {
		dev := outputtest.Stereo48k("USB").Reject(256, 512, 1024)
		_, cfg, err := NewStreamBuilder(nil).Build(dev, buf, NewVolume(1), fullTrim(buf))
		require.NoError(t, err)
		assert.Equal(t, []int{256, 512, 1024, 0}, bufferFrames(dev.Attempts()))
		assert.Equal(t, 0, cfg.BufferFrames)
	})

	t.Run("everything rejected", func(t *testing.T) {
		dev := outputtest.Stereo48k("USB").Reject(256, 512, 1024, 0)
		obs := &recordingObserver{}
		b := NewStreamBuilder(nil)
		b.Observer = obs

		_, _, err := b.Build(dev, buf, NewVolume(1), fullTrim(buf))
		assert.ErrorIs(t, err, ErrStreamConfig)
		assert.Len(t, dev.Attempts(), 4)
		assert.Equal(t, []ErrorKind{KindStreamConfig}, obs.failed)
	})
}

func TestBuildUsesDeviceDefaults(t *testing.T) {
	buf := rampBuffer(t, 480, 2, 44100)
	dev := outputtest.NewDevice("HDMI", output.DeviceConfig{SampleRate: 96000, Channels: 6, Format: audio.FormatS16})

	_, cfg, err := NewStreamBuilder(nil).Build(dev, buf, NewVolume(1), fullTrim(buf))
	require.NoError(t, err)

	assert.Equal(t, 96000, cfg.SampleRate)
	assert.Equal(t, 6, cfg.Channels)
	assert.Equal(t, audio.FormatS16, cfg.Format)

	// Two source channels onto six device channels: the rest are silent
	out := dev.LastStream().PullS16(4)
	require.Len(t, out, 24)
	for f := 0; f < 4; f++ {
		for c := 2; c < 6; c++ {
			assert.Zero(t, out[f*6+c])
		}
	}
}

func TestBuildConfigFailure(t *testing.T) {
	buf := rampBuffer(t, 480, 2, 48000)
	dev := outputtest.Stereo48k("Broken").FailConfig(errors.New("device unplugged"))

	_, _, err := NewStreamBuilder(nil).Build(dev, buf, NewVolume(1), fullTrim(buf))
	assert.ErrorIs(t, err, ErrStreamConfig)
	assert.Empty(t, dev.Attempts())
}

func TestBuildUnsupportedFormat(t *testing.T) {
	buf := rampBuffer(t, 480, 2, 48000)
	dev := outputtest.NewDevice("Weird", output.DeviceConfig{SampleRate: 48000, Channels: 2, Format: audio.FormatUnknown})

	_, _, err := NewStreamBuilder(nil).Build(dev, buf, NewVolume(1), fullTrim(buf))
	assert.ErrorIs(t, err, ErrUnsupportedSampleFormat)
	assert.Equal(t, KindUnsupportedFormat, KindOf(err))
}

func TestBuildPlayFailureClosesStream(t *testing.T) {
	buf := rampBuffer(t, 480, 2, 48000)
	dev := outputtest.Stereo48k("Busy").FailPlay(errors.New("exclusive mode"))

	_, _, err := NewStreamBuilder(nil).Build(dev, buf, NewVolume(1), fullTrim(buf))
	assert.ErrorIs(t, err, ErrStreamStart)
	require.NotNil(t, dev.LastStream())
	assert.True(t, dev.LastStream().Closed())
}

func TestBufferCandidates(t *testing.T) {
	b := NewStreamBuilder(nil)
	assert.Equal(t, []int{256, 512, 1024, 0}, b.BufferCandidates())

	b.PreferredBufferFrames = 512
	b.FallbackBufferFrames = []int{512, 2048, -1}
	assert.Equal(t, []int{512, 2048, 0}, b.BufferCandidates())
}
