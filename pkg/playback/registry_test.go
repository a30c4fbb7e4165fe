// ABOUTME: Tests for the playback registry
// ABOUTME: Covers id allocation, single removal and stop signalling
package playback

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestNextIDIsMonotonic(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, PlaybackID("playback_1"), r.NextID())
	assert.Equal(t, PlaybackID("playback_2"), r.NextID())
	assert.Equal(t, PlaybackID("playback_3"), r.NextID())
}

func TestNextIDConcurrentUnique(t *testing.T) {
	r := NewRegistry()
	const n = 200

	var mu sync.Mutex
	seen := make(map[PlaybackID]bool)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := r.NextID()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}

func TestSignalStopRemovesOnce(t *testing.T) {
	r := NewRegistry()
	id := r.NextID()
	stop := make(chan struct{})
	r.Register(id, stop, NewVolume(1))

	assert.True(t, r.SignalStop(id))
	assert.True(t, isClosed(stop))
	assert.Equal(t, 0, r.Len())

	assert.False(t, r.SignalStop(id), "second stop is a no-op")
	assert.False(t, r.Unregister(id), "worker cleanup after stop is a no-op")
}

func TestUnregisterDoesNotSignal(t *testing.T) {
	r := NewRegistry()
	id := r.NextID()
	stop := make(chan struct{})
	r.Register(id, stop, NewVolume(1))

	assert.True(t, r.Unregister(id))
	assert.False(t, isClosed(stop))
	assert.False(t, r.SignalStop(id))
}

func TestStopAll(t *testing.T) {
	r := NewRegistry()
	stops := make([]chan struct{}, 3)
	for i := range stops {
		stops[i] = make(chan struct{})
		r.Register(r.NextID(), stops[i], NewVolume(1))
	}

	assert.Equal(t, 3, r.StopAll())
	for i, s := range stops {
		assert.True(t, isClosed(s), "stop %d not closed", i)
	}
	assert.Equal(t, 0, r.Len())

	// Later registrations are unaffected
	later := make(chan struct{})
	id := r.NextID()
	r.Register(id, later, NewVolume(1))
	assert.False(t, isClosed(later))
	assert.Equal(t, []PlaybackID{id}, r.Active())
	assert.Equal(t, 0, NewRegistry().StopAll())
}

func TestRegistrySetVolume(t *testing.T) {
	r := NewRegistry()
	id := r.NextID()
	vol := NewVolume(1)
	r.Register(id, make(chan struct{}), vol)

	assert.True(t, r.SetVolume(id, 0.5))
	assert.Equal(t, float32(0.5), vol.Load())

	assert.True(t, r.SetVolume(id, 7))
	assert.Equal(t, float32(1), vol.Load())

	assert.False(t, r.SetVolume("playback_99", 0.1))
}

func TestActiveSortsNumerically(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 12; i++ {
		r.Register(r.NextID(), make(chan struct{}), NewVolume(1))
	}
	for i := 1; i <= 12; i++ {
		if i != 2 && i != 10 {
			require.True(t, r.Unregister(PlaybackID(fmt.Sprintf("playback_%d", i))))
		}
	}

	assert.Equal(t, []PlaybackID{"playback_2", "playback_10"}, r.Active())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{fmt.Errorf("%w: bad", ErrDecode), KindDecode},
		{fmt.Errorf("device A: %w", fmt.Errorf("%w: x", ErrDeviceNotFound)), KindDeviceNotFound},
		{fmt.Errorf("%w: x", ErrStreamConfig), KindStreamConfig},
		{fmt.Errorf("%w: x", ErrStreamStart), KindStreamStart},
		{ErrUnsupportedSampleFormat, KindUnsupportedFormat},
		{ErrEngineClosed, KindEngineClosed},
		{errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
}
