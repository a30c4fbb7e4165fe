// ABOUTME: Tests for the render callback
// ABOUTME: Covers gain, resampling, channel mapping, trims and encodings
package playback

import (
	"math"
	"testing"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uint64p(v uint64) *uint64 { return &v }

// rampBuffer returns a buffer whose sample for frame i, channel c is
// (i+1)/frames, negated on odd channels
func rampBuffer(t *testing.T, frames, channels, rate int) *audio.Buffer {
	t.Helper()
	samples := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := float32(i+1) / float32(frames)
			if c%2 == 1 {
				v = -v
			}
			samples[i*channels+c] = v
		}
	}
	buf, err := audio.NewBuffer(samples, rate, channels)
	require.NoError(t, err)
	return buf
}

func fullTrim(buf *audio.Buffer) Trim {
	return NewTrim(buf, nil, nil)
}

func TestEffectiveGainMonotonicAndBounded(t *testing.T) {
	prev := EffectiveGain(0)
	assert.Equal(t, float32(0), prev)

	for i := 1; i <= 100; i++ {
		g := EffectiveGain(float32(i) / 100)
		assert.GreaterOrEqual(t, g, prev, "gain must not decrease at volume %d%%", i)
		assert.LessOrEqual(t, g, float32(0.2))
		prev = g
	}

	assert.InDelta(t, 0.2, EffectiveGain(1), 1e-7)
	assert.InDelta(t, 0.1, EffectiveGain(0.25), 1e-7)
	assert.Equal(t, float32(0.2), EffectiveGain(5), "out of range volume is clamped")
}

func TestClampVolume(t *testing.T) {
	assert.Equal(t, float32(0), ClampVolume(-0.5))
	assert.Equal(t, float32(1), ClampVolume(1.5))
	assert.Equal(t, float32(0.3), ClampVolume(0.3))
	assert.Equal(t, float32(0), ClampVolume(float32(math.NaN())))

	v := NewVolume(2)
	assert.Equal(t, float32(1), v.Load())
	v.Set(0.4)
	assert.Equal(t, float32(0.4), v.Load())
}

func TestNewTrim(t *testing.T) {
	buf := rampBuffer(t, 1000, 1, 1000)

	tests := []struct {
		name      string
		start     *uint64
		end       *uint64
		wantStart int
		wantEnd   int
		wantMs    uint64
	}{
		{"no trim", nil, nil, 0, 1000, 1000},
		{"window", uint64p(100), uint64p(300), 100, 300, 200},
		{"end clamped to buffer", nil, uint64p(5000), 0, 1000, 1000},
		{"start past end is empty", uint64p(800), uint64p(200), 800, 200, 0},
		{"huge start clamped to buffer", uint64p(1 << 62), nil, 1000, 1000, 0},
		{"huge end clamped to buffer", nil, uint64p(1 << 62), 0, 1000, 1000},
		{"max offsets", uint64p(^uint64(0)), uint64p(^uint64(0)), 1000, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trim := NewTrim(buf, tt.start, tt.end)
			assert.Equal(t, tt.wantStart, trim.StartFrame)
			assert.Equal(t, tt.wantEnd, trim.EndFrame)
			assert.Equal(t, tt.wantMs, trim.DurationMs(buf.SampleRate))
		})
	}
}

func TestIdentityResamplingScalesByGain(t *testing.T) {
	buf := rampBuffer(t, 100, 2, 48000)
	r := NewRenderer(buf, NewVolume(1), fullTrim(buf), 48000, 2)

	cb, err := r.Callback(audio.FormatF32)
	require.NoError(t, err)

	out := make([]float32, 50*2)
	cb.F32(out)

	gain := EffectiveGain(1)
	for i := range out {
		assert.Equal(t, buf.Samples[i]*gain, out[i], "sample %d", i)
	}
}

func TestRenderS16Encoding(t *testing.T) {
	buf, err := audio.NewBuffer([]float32{1, -1, 0.5, -0.5, 0, 0}, 48000, 2)
	require.NoError(t, err)

	r := NewRenderer(buf, NewVolume(1), fullTrim(buf), 48000, 2)
	cb, err := r.Callback(audio.FormatS16)
	require.NoError(t, err)

	out := make([]int16, 6)
	cb.S16(out)

	// 0.2 * 32767 = 6553.4, truncated toward zero
	assert.Equal(t, []int16{6553, -6553, 3276, -3276, 0, 0}, out)
}

func TestRenderU16Encoding(t *testing.T) {
	buf, err := audio.NewBuffer([]float32{1, 0, 0}, 48000, 1)
	require.NoError(t, err)

	r := NewRenderer(buf, NewVolume(1), fullTrim(buf), 48000, 1)
	cb, err := r.Callback(audio.FormatU16)
	require.NoError(t, err)

	out := make([]uint16, 4)
	cb.U16(out)

	// (0.2+1)*32767.5 = 39321, (0+1)*32767.5 = 32767
	assert.Equal(t, uint16(39321), out[0])
	assert.Equal(t, uint16(32767), out[1])
	assert.Equal(t, uint16(audio.Uint16Midpoint), out[2], "last frame is silent")
	assert.Equal(t, uint16(audio.Uint16Midpoint), out[3])
}

func TestExtraOutputChannelsAreSilent(t *testing.T) {
	buf := rampBuffer(t, 64, 1, 48000)

	t.Run("f32", func(t *testing.T) {
		r := NewRenderer(buf, NewVolume(1), fullTrim(buf), 48000, 4)
		cb, err := r.Callback(audio.FormatF32)
		require.NoError(t, err)

		out := make([]float32, 10*4)
		cb.F32(out)
		for f := 0; f < 10; f++ {
			assert.NotZero(t, out[f*4])
			assert.Zero(t, out[f*4+1])
			assert.Zero(t, out[f*4+2])
			assert.Zero(t, out[f*4+3])
		}
	})

	t.Run("u16", func(t *testing.T) {
		r := NewRenderer(buf, NewVolume(1), fullTrim(buf), 48000, 2)
		cb, err := r.Callback(audio.FormatU16)
		require.NoError(t, err)

		out := make([]uint16, 10*2)
		cb.U16(out)
		for f := 0; f < 10; f++ {
			assert.Equal(t, uint16(audio.Uint16Midpoint), out[f*2+1])
		}
	})
}

func TestSurplusSourceChannelsAreDropped(t *testing.T) {
	buf := rampBuffer(t, 16, 2, 48000)
	r := NewRenderer(buf, NewVolume(1), fullTrim(buf), 48000, 1)
	cb, err := r.Callback(audio.FormatF32)
	require.NoError(t, err)

	out := make([]float32, 4)
	cb.F32(out)

	gain := EffectiveGain(1)
	for i := range out {
		assert.Equal(t, buf.Samples[i*2]*gain, out[i])
	}
}

func TestTrimWindowIsRespected(t *testing.T) {
	buf := rampBuffer(t, 1000, 1, 1000)
	trim := NewTrim(buf, uint64p(100), uint64p(300))
	r := NewRenderer(buf, NewVolume(1), trim, 1000, 1)

	cb, err := r.Callback(audio.FormatF32)
	require.NoError(t, err)

	out := make([]float32, 1000)
	cb.F32(out)

	gain := EffectiveGain(1)
	lo := buf.Samples[100] * gain
	hi := buf.Samples[299] * gain

	rendered := 0
	for _, v := range out {
		if v == 0 {
			continue
		}
		rendered++
		assert.GreaterOrEqual(t, v, lo)
		assert.LessOrEqual(t, v, hi)
	}

	// Frames 100..298; the final frame of the window is never read
	assert.Equal(t, 199, rendered)
	assert.Equal(t, lo, out[0])
	for _, v := range out[199:] {
		assert.Zero(t, v)
	}
}

func TestSilenceContinuesAfterEnd(t *testing.T) {
	buf := rampBuffer(t, 10, 2, 48000)
	r := NewRenderer(buf, NewVolume(1), fullTrim(buf), 48000, 2)
	cb, err := r.Callback(audio.FormatF32)
	require.NoError(t, err)

	first := make([]float32, 20*2)
	cb.F32(first)
	for _, v := range first[9*2:] {
		assert.Zero(t, v)
	}

	second := make([]float32, 8*2)
	cb.F32(second)
	for _, v := range second {
		assert.Zero(t, v)
	}
}

func TestUpsamplingInterpolates(t *testing.T) {
	buf, err := audio.NewBuffer([]float32{0, 1, 0, 1}, 24000, 1)
	require.NoError(t, err)

	r := NewRenderer(buf, NewVolume(1), fullTrim(buf), 48000, 1)
	cb, err := r.Callback(audio.FormatF32)
	require.NoError(t, err)

	out := make([]float32, 4)
	cb.F32(out)

	gain := EffectiveGain(1)
	assert.InDelta(t, 0, out[0], 1e-7)
	assert.InDelta(t, 0.5*gain, out[1], 1e-7)
	assert.InDelta(t, gain, out[2], 1e-7)
	assert.InDelta(t, 0.5*gain, out[3], 1e-7)
}

func TestRenderIsDeterministic(t *testing.T) {
	buf := rampBuffer(t, 4410, 2, 44100)

	render := func() []float32 {
		r := NewRenderer(buf, NewVolume(0.7), fullTrim(buf), 48000, 2)
		cb, err := r.Callback(audio.FormatF32)
		require.NoError(t, err)
		out := make([]float32, 256*2)
		var all []float32
		for i := 0; i < 8; i++ {
			cb.F32(out)
			all = append(all, out...)
		}
		return all
	}

	assert.Equal(t, render(), render())
}

func TestVolumeChangeAppliesOnNextCallback(t *testing.T) {
	buf, err := audio.NewBuffer([]float32{1, 1, 1, 1, 1, 1, 1, 1}, 48000, 1)
	require.NoError(t, err)

	vol := NewVolume(1)
	r := NewRenderer(buf, vol, fullTrim(buf), 48000, 1)
	cb, err := r.Callback(audio.FormatF32)
	require.NoError(t, err)

	out := make([]float32, 2)
	cb.F32(out)
	assert.InDelta(t, 0.2, out[0], 1e-7)

	vol.Set(0.25)
	cb.F32(out)
	assert.InDelta(t, 0.1, out[0], 1e-7)

	vol.Set(0)
	cb.F32(out)
	assert.Zero(t, out[0])
}

func TestPartialTrailingFrameIsSilent(t *testing.T) {
	buf := rampBuffer(t, 10, 2, 48000)
	r := NewRenderer(buf, NewVolume(1), fullTrim(buf), 48000, 2)
	cb, err := r.Callback(audio.FormatF32)
	require.NoError(t, err)

	out := []float32{9, 9, 9, 9, 9}
	cb.F32(out)
	assert.NotZero(t, out[3])
	assert.Zero(t, out[4])
}

func TestCallbackRejectsUnknownFormat(t *testing.T) {
	buf := rampBuffer(t, 10, 2, 48000)
	r := NewRenderer(buf, NewVolume(1), fullTrim(buf), 48000, 2)

	_, err := r.Callback(audio.FormatUnknown)
	assert.ErrorIs(t, err, ErrUnsupportedSampleFormat)
}
