// ABOUTME: Opaque device identifiers
// ABOUTME: Formats and parses "device_N" indices into a live enumeration
package output

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const deviceIDPrefix = "device_"

// ErrInvalidDeviceID is returned when an identifier does not name an index
var ErrInvalidDeviceID = errors.New("invalid device id")

// FormatDeviceID returns the opaque identifier for device index i
func FormatDeviceID(i int) string {
	return deviceIDPrefix + strconv.Itoa(i)
}

// ParseDeviceID accepts "device_N" or a bare "N"
func ParseDeviceID(id string) (int, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(id), deviceIDPrefix)
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDeviceID, id)
	}
	return idx, nil
}
