// ABOUTME: Prometheus metrics for playback, streams and the audio cache
// ABOUTME: Observes engine events and stream negotiation on a private registry
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sonicdeck/sonicdeck-go/internal/cache"
	"github.com/sonicdeck/sonicdeck-go/pkg/playback"
)

// Metrics contains all Prometheus metrics for the playback service
type Metrics struct {
	registry *prometheus.Registry

	// Playback metrics
	PlaybacksStarted  prometheus.Counter
	PlaybacksFinished *prometheus.CounterVec
	ActivePlaybacks   prometheus.Gauge
	PlaybackDuration  prometheus.Histogram
	PlaybackErrors    *prometheus.CounterVec
	DecodeErrors      prometheus.Counter
	ProgressEvents    prometheus.Counter

	// Stream metrics
	StreamsOpened      *prometheus.CounterVec
	StreamsFailed      *prometheus.CounterVec
	StreamOpenAttempts prometheus.Histogram

	// Control server metrics
	CommandsHandled  *prometheus.CounterVec
	ClientsConnected prometheus.Gauge

	mu      sync.Mutex
	started map[playback.PlaybackID]time.Time
	now     func() time.Time
}

// New creates all metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PlaybacksStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sonicdeck_playbacks_started_total",
			Help: "Total number of playbacks whose audio decoded successfully",
		}),
		PlaybacksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonicdeck_playbacks_finished_total",
			Help: "Total number of playbacks that ended, by outcome",
		}, []string{"outcome"}),
		ActivePlaybacks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sonicdeck_active_playbacks",
			Help: "Current number of playbacks between decode and completion",
		}),
		PlaybackDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sonicdeck_playback_duration_seconds",
			Help:    "Wall-clock duration of playbacks from decode to completion",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
		PlaybackErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonicdeck_playback_errors_total",
			Help: "Total number of playback errors, by kind",
		}, []string{"kind"}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "sonicdeck_decode_errors_total",
			Help: "Total number of files that failed to decode",
		}),
		ProgressEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "sonicdeck_progress_events_total",
			Help: "Total number of progress notifications emitted",
		}),

		StreamsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonicdeck_streams_opened_total",
			Help: "Total number of device streams started, by buffer size",
		}, []string{"buffer"}),
		StreamsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonicdeck_streams_failed_total",
			Help: "Total number of device streams that could not be started, by kind",
		}, []string{"kind"}),
		StreamOpenAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sonicdeck_stream_open_attempts",
			Help:    "Buffer configurations tried before a stream opened",
			Buckets: prometheus.LinearBuckets(1, 1, 4),
		}),

		CommandsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonicdeck_commands_total",
			Help: "Total number of control commands handled, by command and result",
		}, []string{"command", "result"}),
		ClientsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sonicdeck_clients_connected",
			Help: "Current number of connected control clients",
		}),

		started: make(map[playback.PlaybackID]time.Time),
		now:     time.Now,
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Notify records a playback event
func (m *Metrics) Notify(e playback.Event) {
	switch e.Type {
	case playback.EventDecodeComplete:
		m.PlaybacksStarted.Inc()
		m.ActivePlaybacks.Inc()
		m.mu.Lock()
		m.started[e.PlaybackID] = m.now()
		m.mu.Unlock()
	case playback.EventDecodeError:
		m.DecodeErrors.Inc()
	case playback.EventProgress:
		m.ProgressEvents.Inc()
	case playback.EventPlaybackError:
		m.PlaybackErrors.WithLabelValues(string(e.Kind)).Inc()
	case playback.EventComplete:
		m.PlaybacksFinished.WithLabelValues(string(e.Outcome)).Inc()
		m.mu.Lock()
		start, ok := m.started[e.PlaybackID]
		delete(m.started, e.PlaybackID)
		m.mu.Unlock()
		if ok {
			m.ActivePlaybacks.Dec()
			m.PlaybackDuration.Observe(m.now().Sub(start).Seconds())
		}
	}
}

// StreamOpened records a started device stream
func (m *Metrics) StreamOpened(_ string, cfg playback.DeviceStreamConfig, attempts int) {
	buffer := "default"
	if cfg.BufferFrames > 0 {
		buffer = strconv.Itoa(cfg.BufferFrames)
	}
	m.StreamsOpened.WithLabelValues(buffer).Inc()
	m.StreamOpenAttempts.Observe(float64(attempts))
}

// StreamFailed records a device stream that could not be started
func (m *Metrics) StreamFailed(_ string, kind playback.ErrorKind) {
	m.StreamsFailed.WithLabelValues(string(kind)).Inc()
}

// RecordCommand counts a handled control command
func (m *Metrics) RecordCommand(command string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.CommandsHandled.WithLabelValues(command, result).Inc()
}

// RegisterCache exposes the cache's counters as gauges read at scrape time
func (m *Metrics) RegisterCache(c *cache.Cache) {
	gauge := func(name, help string, read func(cache.Stats) float64) {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: help,
		}, func() float64 { return read(c.Stats()) }))
	}

	gauge("sonicdeck_cache_entries", "Decoded files held in the audio cache",
		func(s cache.Stats) float64 { return float64(s.Entries) })
	gauge("sonicdeck_cache_bytes", "Sample bytes held in the audio cache",
		func(s cache.Stats) float64 { return float64(s.Bytes) })
	gauge("sonicdeck_cache_max_bytes", "Audio cache capacity in bytes",
		func(s cache.Stats) float64 { return float64(s.MaxBytes) })
	gauge("sonicdeck_cache_hits", "Audio cache lookups served from memory",
		func(s cache.Stats) float64 { return float64(s.Hits) })
	gauge("sonicdeck_cache_misses", "Audio cache lookups that required a decode",
		func(s cache.Stats) float64 { return float64(s.Misses) })
	gauge("sonicdeck_cache_evictions", "Audio cache entries evicted for space",
		func(s cache.Stats) float64 { return float64(s.Evictions) })
}

var (
	_ playback.Notifier       = (*Metrics)(nil)
	_ playback.StreamObserver = (*Metrics)(nil)
)
