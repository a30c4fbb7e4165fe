// ABOUTME: Registry of active playbacks and their stop signals
// ABOUTME: Assigns monotonic ids and routes stop and volume requests
package playback

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

const idPrefix = "playback_"

// PlaybackID identifies one playback request
type PlaybackID string

// seq returns the numeric part of the id, or -1
func (id PlaybackID) seq() int64 {
	n, err := strconv.ParseInt(strings.TrimPrefix(string(id), idPrefix), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

type registryEntry struct {
	stop   chan<- struct{}
	volume *Volume
}

// Registry tracks active playbacks. An entry is removed exactly once, either
// by a stop request or by the worker that owns it.
type Registry struct {
	counter atomic.Uint64

	mu      sync.Mutex
	entries map[PlaybackID]registryEntry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[PlaybackID]registryEntry)}
}

// NextID returns a new id; ids start at playback_1 and never repeat
func (r *Registry) NextID() PlaybackID {
	return PlaybackID(idPrefix + strconv.FormatUint(r.counter.Add(1), 10))
}

// Register records the stop channel and volume cell for id. The registry
// takes ownership of closing stop.
func (r *Registry) Register(id PlaybackID, stop chan<- struct{}, volume *Volume) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = registryEntry{stop: stop, volume: volume}
}

// Unregister removes id without signalling it. It reports whether an entry
// was present.
func (r *Registry) Unregister(id PlaybackID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// SignalStop removes id and closes its stop channel. It reports whether an
// entry was present.
func (r *Registry) SignalStop(id PlaybackID) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok {
		close(e.stop)
	}
	return ok
}

// StopAll drains the registry and signals every entry that was present
func (r *Registry) StopAll() int {
	r.mu.Lock()
	drained := r.entries
	r.entries = make(map[PlaybackID]registryEntry)
	r.mu.Unlock()

	for _, e := range drained {
		close(e.stop)
	}
	return len(drained)
}

// SetVolume routes a volume change to an active playback
func (r *Registry) SetVolume(id PlaybackID, v float32) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()

	if ok {
		e.volume.Set(v)
	}
	return ok
}

// Active returns the registered ids in assignment order
func (r *Registry) Active() []PlaybackID {
	r.mu.Lock()
	ids := make([]PlaybackID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].seq() < ids[j].seq() })
	return ids
}

// Len returns the number of active playbacks
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
