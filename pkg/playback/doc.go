// ABOUTME: Dual-output playback engine package
// ABOUTME: Registry, stream negotiation, render path and per-playback workers
// Package playback plays one decoded buffer on two output devices at once.
//
// Each request gets a worker goroutine locked to its OS thread. The worker
// decodes through a Provider, resolves both device ids against a live
// enumeration, opens a stream per device and then ticks until the trimmed
// duration has elapsed or a stop arrives. Streams are torn down by the same
// worker that opened them.
//
// Example:
//
//	engine, err := playback.NewEngine(playback.Config{Host: host, Provider: cache})
//	id, err := engine.StartDualPlayback(playback.Request{
//		Path: "airhorn.mp3", DeviceA: "device_0", DeviceB: "device_2", Volume: 0.8,
//	})
//	engine.Stop(id)
package playback
