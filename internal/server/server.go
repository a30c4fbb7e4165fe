// ABOUTME: WebSocket control server for the playback engine
// ABOUTME: Manages client connections, dispatches commands and broadcasts playback events
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sonicdeck/sonicdeck-go/internal/cache"
	"github.com/sonicdeck/sonicdeck-go/internal/discovery"
	"github.com/sonicdeck/sonicdeck-go/internal/metrics"
	"github.com/sonicdeck/sonicdeck-go/internal/protocol"
	"github.com/sonicdeck/sonicdeck-go/internal/version"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output"
	"github.com/sonicdeck/sonicdeck-go/pkg/playback"
)

const (
	sendBufferSize = 100
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	shutdownGrace  = 5 * time.Second
)

// Engine is the playback surface the server drives
type Engine interface {
	StartDualPlayback(req playback.Request) (playback.PlaybackID, error)
	Stop(id playback.PlaybackID) bool
	StopAll() int
	SetVolume(id playback.PlaybackID, v float32) bool
	Active() []playback.PlaybackID
	Devices() ([]output.DeviceInfo, error)
}

// AudioCache is the decoded-audio cache surface the server exposes
type AudioCache interface {
	GetOrDecode(path string) (*audio.Buffer, error)
	Stats() cache.Stats
	Clear()
}

// Config holds server configuration
type Config struct {
	Address       string
	Port          int
	Name          string
	EnableMDNS    bool
	DefaultVolume float32

	Cache   AudioCache
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Server is the SonicDeck control server
type Server struct {
	config   Config
	serverID string
	logger   *slog.Logger

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	engineMu sync.RWMutex
	engine   Engine

	clients   map[string]*Client
	clientsMu sync.RWMutex

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client represents a connected control client
type Client struct {
	ID         string
	RemoteAddr string
	Conn       *websocket.Conn

	sendChan chan any
}

// New creates a server. Commands that need the engine fail until SetEngine
// is called.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Name == "" {
		config.Name = version.Product
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		logger:   config.Logger.With("component", "server"),
		mux:      http.NewServeMux(),
		clients:  make(map[string]*Client),
		stopChan: make(chan struct{}),
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Intended for trusted local networks; browser origins are logged, not enforced
			if origin := r.Header.Get("Origin"); origin != "" {
				s.logger.Debug("accepting WebSocket from origin", "origin", origin)
			}
			return true
		},
	}

	s.mux.HandleFunc(discovery.ControlPath, s.handleWebSocket)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	if config.Metrics != nil {
		s.mux.Handle("/metrics", config.Metrics.Handler())
	}

	return s
}

// SetEngine attaches the playback engine
func (s *Server) SetEngine(e Engine) {
	s.engineMu.Lock()
	s.engine = e
	s.engineMu.Unlock()
}

func (s *Server) currentEngine() Engine {
	s.engineMu.RLock()
	defer s.engineMu.RUnlock()
	return s.engine
}

// ID returns the server's unique id
func (s *Server) ID() string {
	return s.serverID
}

// Handler returns the HTTP handler serving the control, health and metrics
// endpoints
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called or the listener fails
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Address, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves on listener until Stop is called or the listener fails
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("server starting", "name", s.config.Name, "server_id", s.serverID, "addr", listener.Addr().String())

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        listener.Addr().(*net.TCPAddr).Port,
			Version:     version.Version,
			Logger:      s.config.Logger,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			s.logger.Warn("failed to start mDNS advertisement", "error", err)
		}
	}

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		s.logger.Info("server shutting down")
	case err := <-errChan:
		s.logger.Error("HTTP server error", "error", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP server shutdown error", "error", err)
	}

	// Hijacked WebSocket connections are not closed by Shutdown
	s.clientsMu.RLock()
	for _, c := range s.clients {
		_ = c.Conn.Close()
	}
	s.clientsMu.RUnlock()

	s.wg.Wait()
	s.logger.Info("server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Notify broadcasts a playback event to every connected client
func (s *Server) Notify(e playback.Event) {
	msg := protocol.Message{Type: protocol.TypePlaybackEvent, Payload: e}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		select {
		case c.sendChan <- msg:
		default:
			s.logger.Warn("client send buffer full, dropping event",
				"client_id", c.ID, "event", string(e.Type), "playback_id", string(e.PlaybackID))
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	active := 0
	if e := s.currentEngine(); e != nil {
		active = len(e.Active())
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":           "ok",
		"server_id":        s.serverID,
		"active_playbacks": active,
		"clients":          s.ClientCount(),
	})
}

// handleWebSocket upgrades and serves one control connection
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	shutdown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shutdown {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		ID:         uuid.New().String(),
		RemoteAddr: r.RemoteAddr,
		Conn:       conn,
		sendChan:   make(chan any, sendBufferSize),
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(client)
}

// handleConnection registers the client, runs its writer and reads commands
// until the connection closes
func (s *Server) handleConnection(client *Client) {
	defer client.Conn.Close()

	logger := s.logger.With("client_id", client.ID)

	s.clientsMu.Lock()
	s.clients[client.ID] = client
	s.clientsMu.Unlock()
	if s.config.Metrics != nil {
		s.config.Metrics.ClientsConnected.Inc()
	}
	logger.Info("client connected", "remote", client.RemoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.clientWriter(client, logger)
	}()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		close(client.sendChan)
		<-writerDone

		if s.config.Metrics != nil {
			s.config.Metrics.ClientsConnected.Dec()
		}
		logger.Info("client disconnected")
	}()

	hello := protocol.ServerHello{
		ServerID:     s.serverID,
		ClientID:     client.ID,
		Name:         s.config.Name,
		Version:      protocol.Version,
		Product:      version.Product,
		Manufacturer: version.Manufacturer,
		Software:     version.Version,
	}
	if err := s.send(client, protocol.Message{Type: protocol.TypeServerHello, Payload: hello}); err != nil {
		logger.Warn("error sending server hello", "error", err)
		return
	}

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read error", "error", err)
			}
			return
		}

		resp := s.handleClientMessage(data, logger)
		if err := s.send(client, resp); err != nil {
			logger.Warn("error sending response", "type", resp.Type, "error", err)
		}
	}
}

// clientWriter sends queued messages and keepalive pings
func (s *Server) clientWriter(client *Client, logger *slog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				logger.Error("error marshaling message", "error", err)
				continue
			}
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("error writing message", "error", err)
				// Unblock the reader so the connection is torn down
				_ = client.Conn.Close()
				for range client.sendChan {
				}
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				_ = client.Conn.Close()
				for range client.sendChan {
				}
				return
			}
		}
	}
}

// send queues a message for the client's writer
func (s *Server) send(client *Client, msg any) error {
	select {
	case client.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}
