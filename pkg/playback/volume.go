// ABOUTME: Per-session volume cell and gain curve
// ABOUTME: Lock-guarded linear volume read once per render callback
package playback

import (
	"math"
	"sync"
)

// Output headroom applied on top of the perceptual volume curve
const gainHeadroom = 0.2

// Volume is a session's linear volume in [0, 1]. It is written by control
// requests and read by render callbacks; the lock is never held across a
// frame loop.
type Volume struct {
	mu    sync.Mutex
	value float32
}

// NewVolume returns a cell holding the clamped value v
func NewVolume(v float32) *Volume {
	return &Volume{value: ClampVolume(v)}
}

// Set stores the clamped value v
func (v *Volume) Set(value float32) {
	value = ClampVolume(value)
	v.mu.Lock()
	v.value = value
	v.mu.Unlock()
}

// Load returns the current value
func (v *Volume) Load() float32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// ClampVolume limits v to [0, 1]; NaN maps to 0
func ClampVolume(v float32) float32 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// EffectiveGain maps linear volume to the applied multiplier:
// sqrt(volume) * 0.2, bounded to [0, 0.2]
func EffectiveGain(volume float32) float32 {
	return float32(math.Sqrt(float64(ClampVolume(volume)))) * gainHeadroom
}
