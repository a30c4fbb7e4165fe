// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between different sample rates
// Package resample provides the linear-interpolation primitive used by the
// playback render path.
//
// A Cursor tracks a fractional source frame and advances by
// inputRate/outputRate per output frame. Interpolate reads one channel of
// interleaved samples at that position. Linear interpolation is deliberate:
// it is cheap enough for a real-time callback.
//
// Example:
//
//	c := resample.New(44100, 48000, 0)
//	idx, frac := c.Frame()
//	v := resample.Interpolate(samples, 2, 0, idx, frac)
//	c.Advance()
package resample
