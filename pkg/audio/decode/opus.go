// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes Ogg Opus files at 48kHz using libopusfile
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

const (
	// libopusfile always decodes at 48kHz
	opusSampleRate = 48000

	// 120ms at 48kHz, the largest Opus packet duration
	opusMaxFrameSamples = 5760
)

var opusHeadMagic = []byte("OpusHead")

// Opus decodes a complete Ogg Opus stream
func Opus(r io.Reader) (*audio.Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read opus stream: %w", err)
	}

	channels, err := opusChannels(data)
	if err != nil {
		return nil, err
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create opus stream: %w", err)
	}
	defer stream.Close()

	var samples []float32
	pcm := make([]float32, opusMaxFrameSamples*channels)
	for {
		n, err := stream.ReadFloat32(pcm)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}
		samples = append(samples, pcm[:n*channels]...)
	}

	return audio.NewBuffer(samples, opusSampleRate, channels)
}

// opusChannels reads the output channel count from the OpusHead packet
func opusChannels(data []byte) (int, error) {
	idx := bytes.Index(data, opusHeadMagic)
	if idx < 0 || idx+len(opusHeadMagic)+2 > len(data) {
		return 0, errors.New("missing OpusHead header")
	}

	// Layout: magic(8) version(1) channels(1)
	channels := int(data[idx+len(opusHeadMagic)+1])
	if channels == 0 {
		return 0, errors.New("OpusHead reports zero channels")
	}
	return channels, nil
}
