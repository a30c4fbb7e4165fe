// ABOUTME: Decoded audio cache bounded by memory
// ABOUTME: LRU eviction by sample bytes with de-duplicated concurrent decodes
package cache

import (
	"container/list"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/decode"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxBytes bounds the cache when no limit is configured
const DefaultMaxBytes = 100 * 1024 * 1024

// DecodeFunc decodes the file at path
type DecodeFunc func(path string) (*audio.Buffer, error)

// Stats is a point-in-time cache summary
type Stats struct {
	Entries   int    `json:"entries"`
	Bytes     int64  `json:"bytes"`
	MaxBytes  int64  `json:"max_bytes"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// String formats the stats for logs and terminals
func (s Stats) String() string {
	return fmt.Sprintf("%d entries, %s / %s, %d hits, %d misses",
		s.Entries, humanize.IBytes(uint64(s.Bytes)), humanize.IBytes(uint64(s.MaxBytes)), s.Hits, s.Misses)
}

// Options configures a Cache. Decode defaults to decode.File.
type Options struct {
	MaxBytes int64
	Decode   DecodeFunc
	Logger   *slog.Logger
}

type entry struct {
	key string
	buf *audio.Buffer
}

// Cache maps file paths to decoded buffers. Buffers are shared by pointer and
// never mutated, so evicting an entry does not affect playbacks holding it.
type Cache struct {
	decode   DecodeFunc
	maxBytes int64
	logger   *slog.Logger
	group    singleflight.Group

	mu        sync.Mutex
	entries   map[string]*list.Element
	lru       *list.List
	bytes     int64
	hits      uint64
	misses    uint64
	evictions uint64
	watcher   *Watcher

	// watchMu serializes Watch and Close; watcher writes also hold mu
	watchMu    sync.Mutex
	newWatcher func(*Cache, *slog.Logger) (*Watcher, error)
}

// New creates a cache
func New(opts Options) *Cache {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Decode == nil {
		opts.Decode = decode.File
	}

	return &Cache{
		decode:   opts.Decode,
		maxBytes: opts.MaxBytes,
		logger:   opts.Logger,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),

		newWatcher: NewWatcher,
	}
}

func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// GetOrDecode returns the cached buffer for path, decoding it on a miss.
// Concurrent misses for the same path share one decode.
func (c *Cache) GetOrDecode(path string) (*audio.Buffer, error) {
	k := key(path)

	if buf, ok := c.lookup(k, true); ok {
		return buf, nil
	}

	v, err, shared := c.group.Do(k, func() (any, error) {
		if buf, ok := c.lookup(k, false); ok {
			return buf, nil
		}

		buf, err := c.decode(k)
		if err != nil {
			return nil, err
		}
		c.insert(k, buf)
		return buf, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.logger.Debug("shared in-flight decode", "path", k)
	}
	return v.(*audio.Buffer), nil
}

// lookup returns a cached buffer, counting the hit or miss when count is set
func (c *Cache) lookup(k string, count bool) (*audio.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[k]
	if !ok {
		if count {
			c.misses++
		}
		return nil, false
	}

	c.lru.MoveToFront(el)
	if count {
		c.hits++
	}
	return el.Value.(*entry).buf, true
}

func (c *Cache) insert(k string, buf *audio.Buffer) {
	size := int64(buf.SizeBytes())
	if size > c.maxBytes {
		c.logger.Warn("decoded audio larger than cache, not caching",
			"path", k, "size", humanize.IBytes(uint64(size)), "max", humanize.IBytes(uint64(c.maxBytes)))
		return
	}

	c.mu.Lock()
	if el, ok := c.entries[k]; ok {
		c.removeElement(el)
	}
	c.entries[k] = c.lru.PushFront(&entry{key: k, buf: buf})
	c.bytes += size

	for c.bytes > c.maxBytes {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*entry).key
		c.removeElement(oldest)
		c.evictions++
		c.logger.Debug("evicted cached audio", "path", evicted)
	}
	w := c.watcher
	c.mu.Unlock()

	c.logger.Debug("cached decoded audio", "path", k, "size", humanize.IBytes(uint64(size)))

	if w != nil {
		if err := w.Track(k); err != nil {
			c.logger.Warn("failed to watch cached file", "path", k, "error", err)
		}
	}
}

// removeElement drops el; the caller holds c.mu
func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.lru.Remove(el)
	delete(c.entries, e.key)
	c.bytes -= int64(e.buf.SizeBytes())
}

// Invalidate drops path from the cache, reporting whether it was present
func (c *Cache) Invalidate(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key(path)]
	if ok {
		c.removeElement(el)
	}
	return ok
}

// Clear drops every entry. Hit and miss counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	c.bytes = 0
	c.mu.Unlock()

	c.logger.Info("audio cache cleared", "entries", n)
}

// Stats returns a snapshot of the cache counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries:   len(c.entries),
		Bytes:     c.bytes,
		MaxBytes:  c.maxBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Watch starts invalidating entries when their files change on disk
func (c *Cache) Watch() error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	c.mu.Lock()
	running := c.watcher != nil
	c.mu.Unlock()
	if running {
		return nil
	}

	w, err := c.newWatcher(c, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create cache watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return fmt.Errorf("failed to start cache watcher: %w", err)
	}

	c.mu.Lock()
	c.watcher = w
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	for _, k := range keys {
		if err := w.Track(k); err != nil {
			c.logger.Warn("failed to watch cached file", "path", k, "error", err)
		}
	}
	return nil
}

// Close stops the file watcher, if any
func (c *Cache) Close() error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()

	if w != nil {
		return w.Stop()
	}
	return nil
}
