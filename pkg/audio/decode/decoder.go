// ABOUTME: Decoder dispatch by file extension
// ABOUTME: Opens audio files and routes them to the matching codec
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
)

// ErrUnsupportedFormat is returned for files with no registered decoder
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Func decodes a complete stream into a buffer
type Func func(r io.Reader) (*audio.Buffer, error)

var decoders = map[string]Func{
	".mp3":  MP3,
	".flac": FLAC,
	".wav":  WAV,
	".wave": WAV,
	".ogg":  Vorbis,
	".oga":  Vorbis,
	".opus": Opus,
}

// File decodes the file at path
func File(path string) (*audio.Buffer, error) {
	dec, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	buf, err := dec(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return buf, nil
}

// Supported reports whether path has a decodable extension
func Supported(path string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the registered file extensions, sorted
func Extensions() []string {
	exts := make([]string, 0, len(decoders))
	for ext := range decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
