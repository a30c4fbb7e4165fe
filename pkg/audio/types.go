// ABOUTME: Audio type definitions
// ABOUTME: Defines sample encodings, decoded buffers and sample conversion
package audio

import (
	"errors"
	"fmt"
	"time"
)

const (
	// 16-bit encoding constants
	Int16Scale     = 32767.0
	Uint16Scale    = 32767.5
	Uint16Midpoint = 32768
)

// SampleFormat is an output sample encoding the render path can produce
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatF32
	FormatS16
	FormatU16
)

// String returns the short encoding name
func (f SampleFormat) String() string {
	switch f {
	case FormatF32:
		return "f32"
	case FormatS16:
		return "s16"
	case FormatU16:
		return "u16"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// BytesPerSample returns the size of one encoded sample
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatF32:
		return 4
	case FormatS16, FormatU16:
		return 2
	default:
		return 0
	}
}

// Supported reports whether the render path implements this encoding
func (f SampleFormat) Supported() bool {
	return f == FormatF32 || f == FormatS16 || f == FormatU16
}

// ErrInvalidBuffer is returned when buffer parameters are inconsistent
var ErrInvalidBuffer = errors.New("invalid audio buffer")

// Buffer is decoded interleaved PCM. A Buffer is never mutated after
// NewBuffer returns, so one pointer may be shared by any number of playbacks.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// NewBuffer validates and wraps decoded samples
func NewBuffer(samples []float32, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d", ErrInvalidBuffer, channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidBuffer, sampleRate)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples is not a multiple of %d channels",
			ErrInvalidBuffer, len(samples), channels)
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}

// Frames returns the number of interleaved frames
func (b *Buffer) Frames() int {
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length at the native sample rate
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// SizeBytes returns the memory held by the sample slice
func (b *Buffer) SizeBytes() int {
	return len(b.Samples) * 4
}

// FrameAt converts a millisecond offset to a frame index (truncating),
// clamped to [0, Frames()]
func (b *Buffer) FrameAt(ms uint64) int {
	frames := b.Frames()
	f := float64(ms) / 1000.0 * float64(b.SampleRate)
	if f >= float64(frames) {
		return frames
	}
	return int(f)
}

// SampleToInt16 converts a float sample to signed 16-bit, truncating toward zero.
// Out-of-range values saturate.
func SampleToInt16(v float32) int16 {
	scaled := v * Int16Scale
	if scaled >= 32767 {
		return 32767
	}
	if scaled <= -32768 {
		return -32768
	}
	return int16(scaled)
}

// SampleToUint16 converts a float sample to unsigned 16-bit around the midpoint
func SampleToUint16(v float32) uint16 {
	scaled := (v + 1) * Uint16Scale
	if scaled >= 65535 {
		return 65535
	}
	if scaled <= 0 {
		return 0
	}
	return uint16(scaled)
}

// SampleFromInt16 converts signed 16-bit to float in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}

// SampleFromInt converts a signed integer sample of the given bit depth to float
func SampleFromInt(sample int32, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		return 0
	}
	return float32(float64(sample) / float64(int64(1)<<(bitDepth-1)))
}
