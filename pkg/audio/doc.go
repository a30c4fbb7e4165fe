// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Buffer, SampleFormat and sample conversion functions
// Package audio provides the fundamental audio types shared by the decoders,
// the device backends and the playback engine.
//
// This package defines:
//   - Buffer: immutable interleaved float32 PCM shared across playbacks
//   - SampleFormat: the three output encodings the render path produces
//     (f32, s16, u16)
//
// It also provides conversions from float samples to the 16-bit encodings
// and from integer decoder output to float, plus waveform peak extraction.
//
// Example:
//
//	buf, err := audio.NewBuffer(samples, 48000, 2)
//	frames := buf.Frames()
//	s16 := audio.SampleToInt16(buf.Samples[0])
package audio
