// ABOUTME: Linear-interpolation read cursor for sample rate conversion
// ABOUTME: Advances a fractional source position by the input/output rate ratio
package resample

// Cursor is a fractional read position into interleaved source frames.
// A Cursor is not safe for concurrent use; each render path owns its own.
type Cursor struct {
	inputRate  int
	outputRate int
	ratio      float64
	position   float64
}

// New creates a cursor starting at frame start
func New(inputRate, outputRate int, start float64) *Cursor {
	return &Cursor{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
		position:   start,
	}
}

// Ratio returns the per-output-frame advance (inputRate / outputRate)
func (c *Cursor) Ratio() float64 {
	return c.ratio
}

// Position returns the current fractional source frame
func (c *Cursor) Position() float64 {
	return c.position
}

// Frame splits the position into its integer frame and fractional weight
func (c *Cursor) Frame() (int, float32) {
	idx := int(c.position)
	return idx, float32(c.position - float64(idx))
}

// Advance moves the cursor forward by one output frame
func (c *Cursor) Advance() {
	c.position += c.ratio
}

// Reset moves the cursor back to frame start
func (c *Cursor) Reset(start float64) {
	c.position = start
}

// Interpolate returns channel ch of the linear interpolation between frame
// idx and idx+1 of interleaved samples, weighted by frac. When frame idx+1 is
// out of range the sample at idx is returned unattenuated, and when idx itself
// is out of range the result is silence.
func Interpolate(samples []float32, channels, ch, idx int, frac float32) float32 {
	i1 := idx*channels + ch
	i2 := (idx+1)*channels + ch

	if i2 < len(samples) {
		s1 := samples[i1]
		s2 := samples[i2]
		return s1 + (s2-s1)*frac
	}
	if i1 < len(samples) {
		return samples[i1]
	}
	return 0
}
