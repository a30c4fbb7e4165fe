// ABOUTME: Dual-output playback engine
// ABOUTME: Starts one supervised worker per request and routes control calls
package playback

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output"
)

// Provider returns decoded audio for a path, decoding on a miss
type Provider interface {
	GetOrDecode(path string) (*audio.Buffer, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(path string) (*audio.Buffer, error)

func (f ProviderFunc) GetOrDecode(path string) (*audio.Buffer, error) { return f(path) }

// Request describes one dual-output playback
type Request struct {
	Path        string
	DeviceA     string
	DeviceB     string
	Volume      float32
	TrimStartMs *uint64
	TrimEndMs   *uint64
}

// Config wires an Engine to its collaborators. Host and Provider are required.
type Config struct {
	Host     output.Host
	Provider Provider
	Notifier Notifier
	Registry *Registry
	Builder  *StreamBuilder

	// TickInterval is the supervision interval and the progress step.
	// Values above DefaultTickInterval are capped so stop latency stays
	// within one default tick; shorter values are for tests.
	TickInterval time.Duration
	NewTicker    TickerFactory

	Logger *slog.Logger
}

// Engine runs dual-output playbacks
type Engine struct {
	host         output.Host
	provider     Provider
	notifier     Notifier
	registry     *Registry
	builder      *StreamBuilder
	tickInterval time.Duration
	newTicker    TickerFactory
	logger       *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewEngine creates an engine, filling unset optional collaborators
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Host == nil {
		return nil, errors.New("playback engine requires an output host")
	}
	if cfg.Provider == nil {
		return nil, errors.New("playback engine requires an audio provider")
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = discardNotifier{}
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Builder == nil {
		cfg.Builder = NewStreamBuilder(cfg.Logger)
	}
	switch {
	case cfg.TickInterval <= 0, cfg.TickInterval > DefaultTickInterval:
		cfg.TickInterval = DefaultTickInterval
	case cfg.TickInterval < time.Millisecond:
		cfg.TickInterval = time.Millisecond
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTimeTicker
	}

	return &Engine{
		host:         cfg.Host,
		provider:     cfg.Provider,
		notifier:     cfg.Notifier,
		registry:     cfg.Registry,
		builder:      cfg.Builder,
		tickInterval: cfg.TickInterval,
		newTicker:    cfg.NewTicker,
		logger:       cfg.Logger,
	}, nil
}

// StartDualPlayback registers a playback and starts its worker. It returns
// as soon as the worker is launched; decoding and stream setup happen
// asynchronously and report through the Notifier.
func (e *Engine) StartDualPlayback(req Request) (PlaybackID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", ErrEngineClosed
	}

	id := e.registry.NextID()
	stop := make(chan struct{})
	volume := NewVolume(req.Volume)
	e.registry.Register(id, stop, volume)

	s := &session{
		id:     id,
		req:    req,
		stop:   stop,
		volume: volume,
		engine: e,
		logger: e.logger.With("playback_id", string(id)),
	}

	e.wg.Add(1)
	go s.run()

	e.logger.Info("playback requested",
		"playback_id", string(id),
		"path", req.Path,
		"device_a", req.DeviceA,
		"device_b", req.DeviceB,
		"volume", volume.Load())

	return id, nil
}

// Stop signals one playback. It reports false when id is not active.
func (e *Engine) Stop(id PlaybackID) bool {
	return e.registry.SignalStop(id)
}

// StopAll signals every active playback and returns how many were signalled
func (e *Engine) StopAll() int {
	n := e.registry.StopAll()
	if n > 0 {
		e.logger.Info("stopped all playbacks", "count", n)
	}
	return n
}

// SetVolume changes an active playback's volume, clamped to [0, 1]
func (e *Engine) SetVolume(id PlaybackID, v float32) bool {
	return e.registry.SetVolume(id, v)
}

// Active returns the ids of running playbacks
func (e *Engine) Active() []PlaybackID {
	return e.registry.Active()
}

// Devices lists the host's output devices
func (e *Engine) Devices() ([]output.DeviceInfo, error) {
	return output.List(e.host)
}

// Wait blocks until every worker has exited
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close rejects new requests, stops every playback and waits for workers
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.registry.StopAll()
	e.wg.Wait()
	return nil
}
