// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 streams to stereo float32 buffers
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
)

// go-mp3 always produces 16-bit little-endian stereo
const (
	mp3Channels   = 2
	mp3FrameBytes = mp3Channels * 2
)

// MP3 decodes a complete MP3 stream
func MP3(r io.Reader) (*audio.Buffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	// Drop a trailing partial frame, if any
	pcm = pcm[:len(pcm)-len(pcm)%mp3FrameBytes]

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		sample16 := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = audio.SampleFromInt16(sample16)
	}

	return audio.NewBuffer(samples, decoder.SampleRate(), mp3Channels)
}
