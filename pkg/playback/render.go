// ABOUTME: Real-time render callback with resampling, trim and volume
// ABOUTME: Fills backend buffers from a shared decoded buffer without allocating
package playback

import (
	"fmt"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/resample"
)

// Trim is a half-open frame window [StartFrame, EndFrame) into a buffer
type Trim struct {
	StartFrame int
	EndFrame   int
}

// NewTrim converts millisecond offsets into a frame window. A nil offset
// means the buffer edge; both edges are clamped to [0, buffer length].
func NewTrim(buf *audio.Buffer, startMs, endMs *uint64) Trim {
	t := Trim{EndFrame: buf.Frames()}
	if startMs != nil {
		t.StartFrame = buf.FrameAt(*startMs)
	}
	if endMs != nil {
		t.EndFrame = buf.FrameAt(*endMs)
	}
	return t
}

// Frames returns the window length, zero when the window is empty
func (t Trim) Frames() int {
	if t.EndFrame <= t.StartFrame {
		return 0
	}
	return t.EndFrame - t.StartFrame
}

// DurationMs returns the window length at sampleRate in whole milliseconds
func (t Trim) DurationMs(sampleRate int) uint64 {
	if sampleRate <= 0 {
		return 0
	}
	return uint64(float64(t.Frames()) / float64(sampleRate) * 1000.0)
}

// Renderer produces output frames for one stream. Its cursor is owned
// exclusively by the backend thread that invokes the callback.
type Renderer struct {
	buf         *audio.Buffer
	volume      *Volume
	cursor      *resample.Cursor
	limit       int
	outChannels int
}

// NewRenderer binds buf to an output of outRate Hz with outChannels channels
func NewRenderer(buf *audio.Buffer, volume *Volume, trim Trim, outRate, outChannels int) *Renderer {
	return &Renderer{
		buf:         buf,
		volume:      volume,
		cursor:      resample.New(buf.SampleRate, outRate, float64(trim.StartFrame)),
		limit:       min(trim.EndFrame, buf.Frames()),
		outChannels: outChannels,
	}
}

// Callback returns the render entry point for format
func (r *Renderer) Callback(format audio.SampleFormat) (output.Callback, error) {
	switch format {
	case audio.FormatF32:
		return output.Callback{Format: format, F32: func(out []float32) {
			render(r, out, encodeF32, 0)
		}}, nil
	case audio.FormatS16:
		return output.Callback{Format: format, S16: func(out []int16) {
			render(r, out, audio.SampleToInt16, 0)
		}}, nil
	case audio.FormatU16:
		return output.Callback{Format: format, U16: func(out []uint16) {
			render(r, out, audio.SampleToUint16, audio.Uint16Midpoint)
		}}, nil
	default:
		return output.Callback{}, fmt.Errorf("%w: %s", ErrUnsupportedSampleFormat, format)
	}
}

func encodeF32(v float32) float32 { return v }

// render fills out with whole interleaved frames. Once the cursor reaches the
// last readable frame of the window every remaining frame is silent.
func render[T float32 | int16 | uint16](r *Renderer, out []T, encode func(float32) T, silence T) {
	gain := EffectiveGain(r.volume.Load())
	srcChannels := r.buf.Channels
	last := float64(r.limit - 1)
	outCh := r.outChannels
	if outCh <= 0 {
		return
	}

	for frame := 0; frame+outCh <= len(out); frame += outCh {
		if r.cursor.Position() >= last {
			for i := frame; i < len(out); i++ {
				out[i] = silence
			}
			return
		}

		idx, frac := r.cursor.Frame()
		for ch := 0; ch < outCh; ch++ {
			if ch >= srcChannels {
				out[frame+ch] = silence
				continue
			}
			v := resample.Interpolate(r.buf.Samples, srcChannels, ch, idx, frac)
			out[frame+ch] = encode(v * gain)
		}
		r.cursor.Advance()
	}

	// Partial trailing frame
	for i := len(out) - len(out)%outCh; i < len(out); i++ {
		out[i] = silence
	}
}
