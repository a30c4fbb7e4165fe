// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frames to interleaved float32 buffers
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
)

// FLAC decodes a complete FLAC stream
func FLAC(r io.Reader) (*audio.Buffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open flac stream: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	samples := make([]float32, 0, int(stream.Info.NSamples)*channels)

	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame decode failed: %w", err)
		}

		if len(frame.Subframes) < channels {
			return nil, fmt.Errorf("flac frame has %d subframes, expected %d", len(frame.Subframes), channels)
		}

		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, audio.SampleFromInt(frame.Subframes[ch].Samples[i], bitDepth))
			}
		}
	}

	return audio.NewBuffer(samples, int(stream.Info.SampleRate), channels)
}
