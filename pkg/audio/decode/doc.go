// ABOUTME: Audio decoder package for multiple container formats
// ABOUTME: Decodes whole files into interleaved float32 buffers
// Package decode turns audio files into audio.Buffer values.
//
// Supports: MP3, FLAC, WAV, Ogg Vorbis, Ogg Opus. The decoder is chosen by
// file extension.
//
// All decoders output interleaved float32 samples in [-1, 1] at the file's
// native sample rate (Opus always decodes at 48 kHz).
//
// Example:
//
//	buf, err := decode.File("clip.flac")
//	fmt.Println(buf.Frames(), buf.SampleRate, buf.Channels)
package decode
