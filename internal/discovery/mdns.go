// ABOUTME: mDNS advertisement and browsing for SonicDeck control servers
// ABOUTME: Publishes _sonicdeck._tcp with the WebSocket path in TXT records
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD service type of a control server
	ServiceType = "_sonicdeck._tcp"

	// ControlPath is the WebSocket endpoint advertised in TXT records
	ControlPath = "/control"

	browseTimeout = 3 * time.Second
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Version     string
	Logger      *slog.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered server
type ServerInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// URL returns the WebSocket URL of the server's control endpoint
func (s *ServerInfo) URL() string {
	path := s.Path
	if path == "" {
		path = ControlPath
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(s.Host, fmt.Sprint(s.Port)), path)
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		config:  config,
		logger:  logger.With("component", "mdns"),
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// txtRecords returns the TXT fields advertised for this server
func (m *Manager) txtRecords() []string {
	txt := []string{"path=" + ControlPath}
	if m.config.Version != "" {
		txt = append(txt, "version="+m.config.Version)
	}
	return txt
}

// Advertise publishes this server via mDNS until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txtRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.logger.Info("advertising mDNS service",
		"name", m.config.ServiceName, "port", m.config.Port, "type", ServiceType)

	go func() {
		<-m.ctx.Done()
		if err := server.Shutdown(); err != nil {
			m.logger.Warn("mdns shutdown failed", "error", err)
		}
	}()

	return nil
}

// Browse searches for control servers until Stop is called. Results arrive
// on Servers().
func (m *Manager) Browse() {
	go m.browseLoop()
}

// browseLoop repeatedly queries for servers
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				server := entryToServer(entry)
				if server == nil {
					continue
				}

				m.logger.Debug("discovered server", "name", server.Name, "host", server.Host, "port", server.Port)

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: browseTimeout,
			Entries: entries,
		}

		if err := mdns.Query(params); err != nil {
			m.logger.Warn("mdns query failed", "error", err)
		}
		close(entries)
		<-done
	}
}

// entryToServer converts a service entry, skipping entries without IPv4
func entryToServer(entry *mdns.ServiceEntry) *ServerInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}

	server := &ServerInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
	}
	for _, field := range entry.InfoFields {
		if path, ok := strings.CutPrefix(field, "path="); ok {
			server.Path = path
		}
	}
	return server
}

// Servers returns the channel of discovered servers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns non-loopback IPv4 addresses of interfaces that are up
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
