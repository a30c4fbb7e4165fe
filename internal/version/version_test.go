// ABOUTME: Tests for version constants
// ABOUTME: Ensures version information is properly defined
package version

import (
	"strings"
	"testing"
)

func TestIdentificationDefined(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Version", Version},
		{"Product", Product},
		{"Manufacturer", Manufacturer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Errorf("%s should not be empty", tt.name)
			}
			if len(tt.value) > 100 {
				t.Errorf("%s is unreasonably long", tt.name)
			}
		})
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Product+" ") {
		t.Errorf("expected %q to start with product name", s)
	}
	if !strings.HasSuffix(s, Version) {
		t.Errorf("expected %q to end with version", s)
	}
}
