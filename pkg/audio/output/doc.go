// ABOUTME: Audio output package for callback-driven playback
// ABOUTME: Provides Host/Device/Stream contracts with malgo, oto and PortAudio backends
// Package output abstracts audio output backends.
//
// A Host enumerates Devices. A Device reports its default configuration and
// opens Streams bound to a render Callback; the backend invokes the callback
// on its own real-time thread whenever it needs samples.
//
// Backends:
//   - malgo (default): miniaudio, full device enumeration
//   - oto: the system default device only
//   - portaudio: requires -tags portaudio and the PortAudio C library
//
// Example:
//
//	host, err := output.NewHost("malgo", output.Options{})
//	devices, err := host.Devices()
//	cfg, err := devices[0].DefaultConfig()
//	stream, err := devices[0].OpenStream(output.StreamConfig{
//		SampleRate: cfg.SampleRate, Channels: cfg.Channels, Format: cfg.Format,
//	}, cb)
//	err = stream.Play()
package output
