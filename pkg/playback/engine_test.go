// ABOUTME: Tests for the playback engine
// ABOUTME: Covers lifecycle events, stop latency, trims and failure paths
package playback

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output/outputtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// manualTicker fires only when a test calls tick
type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(waitTimeout):
		t.Fatal("worker did not accept tick")
	}
}

type tickerSource struct {
	created chan *manualTicker
}

func newTickerSource() *tickerSource {
	return &tickerSource{created: make(chan *manualTicker, 16)}
}

func (s *tickerSource) factory(time.Duration) Ticker {
	tk := &manualTicker{ch: make(chan time.Time)}
	s.created <- tk
	return tk
}

func (s *tickerSource) next(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-s.created:
		return tk
	case <-time.After(waitTimeout):
		t.Fatal("worker never created a ticker")
		return nil
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) forID(id PlaybackID) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.PlaybackID == id {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) waitCount(t *testing.T, id PlaybackID, n int) []Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.forID(id)) >= n }, waitTimeout, time.Millisecond,
		"expected %d events for %s", n, id)
	return r.forID(id)
}

type engineFixture struct {
	engine  *Engine
	host    *outputtest.Host
	devices []*outputtest.Device
	events  *eventRecorder
	tickers *tickerSource
}

func newFixture(t *testing.T, provider Provider, devices ...*outputtest.Device) *engineFixture {
	t.Helper()
	if len(devices) == 0 {
		devices = []*outputtest.Device{outputtest.Stereo48k("Speakers"), outputtest.Stereo48k("Virtual Cable")}
	}

	f := &engineFixture{
		host:    outputtest.NewHost(devices...),
		devices: devices,
		events:  &eventRecorder{},
		tickers: newTickerSource(),
	}

	engine, err := NewEngine(Config{
		Host:      f.host,
		Provider:  provider,
		Notifier:  f.events,
		NewTicker: f.tickers.factory,
	})
	require.NoError(t, err)
	f.engine = engine
	t.Cleanup(func() { _ = engine.Close() })
	return f
}

func staticProvider(buf *audio.Buffer) Provider {
	return ProviderFunc(func(string) (*audio.Buffer, error) { return buf, nil })
}

func oneSecondStereo(t *testing.T) *audio.Buffer {
	return rampBuffer(t, 48000, 2, 48000)
}

func TestNewEngineBoundsTickInterval(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"unset", 0, DefaultTickInterval},
		{"shorter kept", 10 * time.Millisecond, 10 * time.Millisecond},
		{"longer capped", 2 * time.Second, DefaultTickInterval},
		{"sub-millisecond raised", time.Microsecond, time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEngine(Config{
				Host:         outputtest.NewHost(),
				Provider:     staticProvider(nil),
				TickInterval: tt.in,
			})
			require.NoError(t, err)
			defer e.Close()
			assert.Equal(t, tt.want, e.tickInterval)
		})
	}
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	_, err := NewEngine(Config{Provider: staticProvider(nil)})
	assert.Error(t, err)

	_, err = NewEngine(Config{Host: outputtest.NewHost()})
	assert.Error(t, err)
}

func TestEndToEndProgressAndCompletion(t *testing.T) {
	f := newFixture(t, staticProvider(oneSecondStereo(t)))

	id, err := f.engine.StartDualPlayback(Request{Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1", Volume: 1})
	require.NoError(t, err)
	assert.Equal(t, PlaybackID("playback_1"), id)

	tk := f.tickers.next(t)
	for i := 1; i <= 20; i++ {
		tk.tick(t)
		events := f.events.waitCount(t, id, 1+i)
		p := events[i]
		assert.Equal(t, EventProgress, p.Type)
		assert.Equal(t, uint64(50*i), p.ElapsedMs)
		assert.Equal(t, uint64(1000), p.TotalMs)
		assert.Equal(t, uint8(50*i/10), p.Percent)
	}

	events := f.events.waitCount(t, id, 22)
	f.engine.Wait()

	assert.Equal(t, EventDecodeComplete, events[0].Type)
	assert.Equal(t, Event{Type: EventComplete, PlaybackID: id, Outcome: OutcomeCompleted}, events[21])

	completes := 0
	for _, e := range f.events.forID(id) {
		if e.Type == EventComplete {
			completes++
		}
	}
	assert.Equal(t, 1, completes)

	for _, d := range f.devices {
		require.Len(t, d.Streams(), 1)
		assert.True(t, d.LastStream().Closed())
	}
	assert.Empty(t, f.engine.Active())
}

func TestStopWithinOneTick(t *testing.T) {
	f := newFixture(t, staticProvider(oneSecondStereo(t)))

	id, err := f.engine.StartDualPlayback(Request{Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1", Volume: 1})
	require.NoError(t, err)

	tk := f.tickers.next(t)
	tk.tick(t)
	f.events.waitCount(t, id, 2)

	assert.True(t, f.engine.Stop(id))

	// No further ticks are delivered; the worker must still finish
	events := f.events.waitCount(t, id, 3)
	f.engine.Wait()

	assert.Equal(t, Event{Type: EventComplete, PlaybackID: id, Outcome: OutcomeStopped}, events[2])
	assert.Len(t, f.events.forID(id), 3, "no progress after stop")
	assert.False(t, f.engine.Stop(id))

	for _, d := range f.devices {
		assert.True(t, d.LastStream().Closed())
	}
}

func TestSimultaneousPlaybacksAreIndependent(t *testing.T) {
	buf := oneSecondStereo(t)
	devices := []*outputtest.Device{
		outputtest.Stereo48k("A1"), outputtest.Stereo48k("B1"),
		outputtest.Stereo48k("A2"), outputtest.Stereo48k("B2"),
	}
	f := newFixture(t, staticProvider(buf), devices...)

	id1, err := f.engine.StartDualPlayback(Request{Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1", Volume: 1})
	require.NoError(t, err)
	tk1 := f.tickers.next(t)

	id2, err := f.engine.StartDualPlayback(Request{Path: "clip.wav", DeviceA: "device_2", DeviceB: "device_3", Volume: 1})
	require.NoError(t, err)
	tk2 := f.tickers.next(t)

	// Cursors are per stream: draining one leaves the other at the start
	first := devices[0].LastStream().PullF32(100)
	other := devices[2].LastStream().PullF32(100)
	assert.Equal(t, first, other)

	tk1.tick(t)
	f.events.waitCount(t, id1, 2)
	require.True(t, f.engine.Stop(id1))
	f.events.waitCount(t, id1, 3)

	for i := 1; i <= 20; i++ {
		tk2.tick(t)
		f.events.waitCount(t, id2, 1+i)
	}
	events := f.events.waitCount(t, id2, 22)

	for i := 1; i <= 20; i++ {
		assert.Equal(t, EventProgress, events[i].Type)
		assert.Equal(t, uint64(50*i), events[i].ElapsedMs)
	}
	assert.Equal(t, OutcomeCompleted, events[21].Outcome)
	assert.Equal(t, OutcomeStopped, f.events.forID(id1)[2].Outcome)
}

func TestDecodeError(t *testing.T) {
	f := newFixture(t, ProviderFunc(func(string) (*audio.Buffer, error) {
		return nil, errors.New("not an mp3")
	}))

	id, err := f.engine.StartDualPlayback(Request{Path: "bad.mp3", DeviceA: "device_0", DeviceB: "device_1", Volume: 1})
	require.NoError(t, err)

	f.engine.Wait()
	events := f.events.forID(id)
	require.Len(t, events, 1)
	assert.Equal(t, EventDecodeError, events[0].Type)
	assert.Contains(t, events[0].Reason, "not an mp3")
	assert.Empty(t, f.engine.Active())
	assert.Empty(t, f.devices[0].Attempts())
}

func TestDeviceResolutionFailures(t *testing.T) {
	tests := []struct {
		name    string
		deviceA string
		deviceB string
	}{
		{"index out of range", "device_0", "device_9"},
		{"malformed id", "speakers", "device_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, staticProvider(oneSecondStereo(t)))

			id, err := f.engine.StartDualPlayback(Request{Path: "clip.wav", DeviceA: tt.deviceA, DeviceB: tt.deviceB, Volume: 1})
			require.NoError(t, err)

			f.engine.Wait()
			events := f.events.forID(id)
			require.Len(t, events, 2)
			assert.Equal(t, EventPlaybackError, events[1].Type)
			assert.Equal(t, KindDeviceNotFound, events[1].Kind)
			assert.Empty(t, f.devices[0].Streams())
			assert.Empty(t, f.engine.Active())
		})
	}
}

func TestSecondStreamFailureClosesFirst(t *testing.T) {
	devices := []*outputtest.Device{
		outputtest.Stereo48k("Speakers"),
		outputtest.Stereo48k("Dead Cable").Reject(256, 512, 1024, 0),
	}
	f := newFixture(t, staticProvider(oneSecondStereo(t)), devices...)

	id, err := f.engine.StartDualPlayback(Request{Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1", Volume: 1})
	require.NoError(t, err)

	f.engine.Wait()
	events := f.events.forID(id)
	require.Len(t, events, 2)
	assert.Equal(t, KindStreamConfig, events[1].Kind)
	assert.True(t, devices[0].LastStream().Closed())
}

func TestEnumerationFailure(t *testing.T) {
	f := newFixture(t, staticProvider(oneSecondStereo(t)))
	f.host.FailDevices(errors.New("backend gone"))

	id, err := f.engine.StartDualPlayback(Request{Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1", Volume: 1})
	require.NoError(t, err)

	f.engine.Wait()
	events := f.events.forID(id)
	require.Len(t, events, 2)
	assert.Equal(t, KindDeviceNotFound, events[1].Kind)
}

func TestEmptyTrimCompletesWithoutTicks(t *testing.T) {
	f := newFixture(t, staticProvider(oneSecondStereo(t)))

	id, err := f.engine.StartDualPlayback(Request{
		Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1", Volume: 1,
		TrimStartMs: uint64p(500), TrimEndMs: uint64p(500),
	})
	require.NoError(t, err)

	f.engine.Wait()
	events := f.events.forID(id)
	require.Len(t, events, 2)
	assert.Equal(t, OutcomeCompleted, events[1].Outcome)
}

func TestOversizedTrimStartCompletesImmediately(t *testing.T) {
	f := newFixture(t, staticProvider(oneSecondStereo(t)))

	id, err := f.engine.StartDualPlayback(Request{
		Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1", Volume: 1,
		TrimStartMs: uint64p(1 << 62),
	})
	require.NoError(t, err)

	f.engine.Wait()
	events := f.events.forID(id)
	require.Len(t, events, 2)
	assert.Equal(t, EventComplete, events[1].Type)
	assert.Equal(t, OutcomeCompleted, events[1].Outcome)
}

func TestTrimmedDuration(t *testing.T) {
	f := newFixture(t, staticProvider(oneSecondStereo(t)))

	id, err := f.engine.StartDualPlayback(Request{
		Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1", Volume: 1,
		TrimStartMs: uint64p(200), TrimEndMs: uint64p(300),
	})
	require.NoError(t, err)

	tk := f.tickers.next(t)
	tk.tick(t)
	tk.tick(t)

	events := f.events.waitCount(t, id, 4)
	f.engine.Wait()
	assert.Equal(t, uint64(100), events[1].TotalMs)
	assert.Equal(t, uint8(50), events[1].Percent)
	assert.Equal(t, uint8(100), events[2].Percent)
	assert.Equal(t, OutcomeCompleted, events[3].Outcome)
}

func TestEngineSetVolume(t *testing.T) {
	samples := make([]float32, 48000*2)
	for i := range samples {
		samples[i] = 1
	}
	buf, err := audio.NewBuffer(samples, 48000, 2)
	require.NoError(t, err)
	f := newFixture(t, staticProvider(buf))

	id, err := f.engine.StartDualPlayback(Request{Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1", Volume: 4})
	require.NoError(t, err)
	f.tickers.next(t)

	stream := f.devices[1].LastStream()
	assert.InDelta(t, 0.2, stream.PullF32(1)[0], 1e-7, "request volume is clamped to 1")

	assert.True(t, f.engine.SetVolume(id, 0.25))
	assert.InDelta(t, 0.1, stream.PullF32(1)[0], 1e-7)

	assert.False(t, f.engine.SetVolume("playback_404", 0.5))
}

func TestCloseStopsPlaybacksAndRejectsNewOnes(t *testing.T) {
	f := newFixture(t, staticProvider(oneSecondStereo(t)))

	id, err := f.engine.StartDualPlayback(Request{Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1", Volume: 1})
	require.NoError(t, err)
	f.tickers.next(t)

	require.NoError(t, f.engine.Close())

	events := f.events.forID(id)
	require.NotEmpty(t, events)
	assert.Equal(t, OutcomeStopped, events[len(events)-1].Outcome)

	_, err = f.engine.StartDualPlayback(Request{Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1"})
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestStopAllSignalsEveryPlayback(t *testing.T) {
	f := newFixture(t, staticProvider(oneSecondStereo(t)))

	for i := 0; i < 3; i++ {
		_, err := f.engine.StartDualPlayback(Request{Path: "clip.wav", DeviceA: "device_0", DeviceB: "device_1", Volume: 1})
		require.NoError(t, err)
		f.tickers.next(t)
	}

	assert.Equal(t, 3, f.engine.StopAll())
	f.engine.Wait()
	assert.Empty(t, f.engine.Active())
}

func TestEngineDevices(t *testing.T) {
	f := newFixture(t, staticProvider(nil), outputtest.Stereo48k("Speakers").AsDefault(), outputtest.Stereo48k("Cable"))

	infos, err := f.engine.Devices()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "device_1", infos[1].ID)
	assert.True(t, infos[0].IsDefault)
}

func TestEventJSONCarriesOnlyRelevantFields(t *testing.T) {
	data, err := json.Marshal(progressEvent("playback_1", 50, 1000))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"progress","playback_id":"playback_1","elapsed_ms":50,"total_ms":1000,"percent":5}`, string(data))

	data, err = json.Marshal(Event{Type: EventComplete, PlaybackID: "playback_2", Outcome: OutcomeStopped})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"complete","playback_id":"playback_2","outcome":"stopped"}`, string(data))

	data, err = json.Marshal(Event{Type: EventPlaybackError, PlaybackID: "playback_3", Kind: KindStreamStart, Reason: "busy"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"playback-error","playback_id":"playback_3","kind":"stream_start","reason":"busy"}`, string(data))
}

func TestEventIsTerminal(t *testing.T) {
	tests := map[EventType]bool{
		EventDecodeComplete: false,
		EventProgress:       false,
		EventComplete:       true,
		EventDecodeError:    true,
		EventPlaybackError:  true,
	}
	for typ, want := range tests {
		assert.Equal(t, want, Event{Type: typ}.IsTerminal(), string(typ))
	}
}
