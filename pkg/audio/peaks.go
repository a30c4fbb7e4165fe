// ABOUTME: Waveform peak extraction for decoded buffers
// ABOUTME: Produces per-bucket absolute amplitude maxima for display
package audio

// Waveform holds normalized peak data for a buffer
type Waveform struct {
	Peaks      []float32 `json:"peaks"`
	DurationMs uint64    `json:"duration_ms"`
}

// Peaks splits the buffer into n equal buckets of frames and returns the
// maximum absolute sample (across all channels) in each bucket.
func Peaks(b *Buffer, n int) Waveform {
	w := Waveform{DurationMs: uint64(b.Duration().Milliseconds())}
	frames := b.Frames()
	if n <= 0 || frames == 0 {
		return w
	}
	if n > frames {
		n = frames
	}

	w.Peaks = make([]float32, n)
	for i := 0; i < n; i++ {
		start := i * frames / n
		end := (i + 1) * frames / n

		var peak float32
		for _, s := range b.Samples[start*b.Channels : end*b.Channels] {
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
		w.Peaks[i] = peak
	}

	return w
}
