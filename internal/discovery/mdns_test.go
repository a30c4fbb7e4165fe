// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers TXT records, entry conversion and control URLs
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test Deck", Port: 8927})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	mgr.Stop()
}

func TestTXTRecords(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    []string
	}{
		{"without version", "", []string{"path=/control"}},
		{"with version", "1.2.0", []string{"path=/control", "version=1.2.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := NewManager(Config{ServiceName: "Deck", Port: 1, Version: tt.version})
			defer mgr.Stop()

			got := mgr.txtRecords()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("record %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestEntryToServer(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "Studio Deck._sonicdeck._tcp.local.",
		AddrV4:     net.IPv4(192, 168, 1, 20),
		Port:       8927,
		InfoFields: []string{"version=1", "path=/control"},
	}

	server := entryToServer(entry)
	if server == nil {
		t.Fatal("expected server")
	}
	if server.Name != "Studio Deck" {
		t.Errorf("expected trimmed name, got %q", server.Name)
	}
	if got := server.URL(); got != "ws://192.168.1.20:8927/control" {
		t.Errorf("unexpected URL %q", got)
	}
}

func TestEntryWithoutIPv4IsSkipped(t *testing.T) {
	if entryToServer(&mdns.ServiceEntry{Name: "v6 only", Port: 1}) != nil {
		t.Error("expected nil for entry without IPv4 address")
	}
	if entryToServer(nil) != nil {
		t.Error("expected nil for nil entry")
	}
}

func TestServerURLDefaultsPath(t *testing.T) {
	s := &ServerInfo{Host: "10.0.0.5", Port: 9000}
	if got := s.URL(); got != "ws://10.0.0.5:9000/control" {
		t.Errorf("unexpected URL %q", got)
	}
}
