// ABOUTME: WAV and Ogg Vorbis decoders backed by beep
// ABOUTME: Drains beep streamers into interleaved float32 buffers
package decode

import (
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
)

const beepChunkFrames = 4096

// WAV decodes a complete RIFF/WAVE stream
func WAV(r io.Reader) (*audio.Buffer, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav stream: %w", err)
	}
	return drain(streamer, format)
}

// Vorbis decodes a complete Ogg Vorbis stream
func Vorbis(r io.Reader) (*audio.Buffer, error) {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}

	streamer, format, err := vorbis.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to open vorbis stream: %w", err)
	}
	return drain(streamer, format)
}

// drain reads every frame from a beep streamer. beep always yields stereo
// pairs; mono sources repeat the sample, so only the left one is kept.
func drain(streamer beep.StreamSeekCloser, format beep.Format) (*audio.Buffer, error) {
	defer streamer.Close()

	channels := format.NumChannels
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}

	samples := make([]float32, 0, streamer.Len()*channels)
	chunk := make([][2]float64, beepChunkFrames)

	for {
		n, ok := streamer.Stream(chunk)
		for i := 0; i < n; i++ {
			samples = append(samples, float32(chunk[i][0]))
			if channels == 2 {
				samples = append(samples, float32(chunk[i][1]))
			}
		}
		if !ok {
			break
		}
	}

	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("stream decode failed: %w", err)
	}

	return audio.NewBuffer(samples, int(format.SampleRate), channels)
}
