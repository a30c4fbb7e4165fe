// ABOUTME: Playback error sentinels and classification
// ABOUTME: Maps wrapped failures onto stable kinds for notifications
package playback

import (
	"errors"
)

var (
	ErrDecode                  = errors.New("decode failed")
	ErrDeviceNotFound          = errors.New("device not found")
	ErrStreamConfig            = errors.New("stream configuration failed")
	ErrStreamStart             = errors.New("stream start failed")
	ErrUnsupportedSampleFormat = errors.New("unsupported sample format")
	ErrEngineClosed            = errors.New("engine closed")
)

// ErrorKind is the stable label carried by playback-error notifications
type ErrorKind string

const (
	KindDecode            ErrorKind = "decode"
	KindDeviceNotFound    ErrorKind = "device_not_found"
	KindStreamConfig      ErrorKind = "stream_config"
	KindStreamStart       ErrorKind = "stream_start"
	KindUnsupportedFormat ErrorKind = "unsupported_sample_format"
	KindEngineClosed      ErrorKind = "engine_closed"
	KindInternal          ErrorKind = "internal"
)

// KindOf classifies err by the first sentinel it wraps
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrDeviceNotFound):
		return KindDeviceNotFound
	case errors.Is(err, ErrUnsupportedSampleFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrStreamStart):
		return KindStreamStart
	case errors.Is(err, ErrStreamConfig):
		return KindStreamConfig
	case errors.Is(err, ErrEngineClosed):
		return KindEngineClosed
	default:
		return KindInternal
	}
}
