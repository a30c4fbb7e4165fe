// ABOUTME: WebSocket client for the SonicDeck control protocol
// ABOUTME: Handles connection, handshake, request correlation and event routing
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sonicdeck/sonicdeck-go/internal/discovery"
	"github.com/sonicdeck/sonicdeck-go/internal/protocol"
	"github.com/sonicdeck/sonicdeck-go/pkg/playback"
)

const (
	handshakeTimeout = 5 * time.Second
	eventBuffer      = 256
)

// ErrClosed is returned by calls on a closed connection
var ErrClosed = errors.New("connection closed")

// RemoteError is a command failure reported by the server
type RemoteError struct {
	Command string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", e.Command, e.Code, e.Message)
}

// Config holds client configuration
type Config struct {
	// ServerAddr is host:port of the control server
	ServerAddr string
	Logger     *slog.Logger
}

// Client is a control connection to one server
type Client struct {
	config Config
	logger *slog.Logger
	conn   *websocket.Conn
	hello  protocol.ServerHello

	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]chan protocol.Response
	connected bool

	seq    atomic.Uint64
	events chan playback.Event
	ctx    context.Context
	cancel context.CancelFunc
}

type rawResponse struct {
	ID     string              `json:"id"`
	Type   string              `json:"type"`
	OK     bool                `json:"ok"`
	Result json.RawMessage     `json:"result"`
	Error  *protocol.ErrorInfo `json:"error"`
}

// NewClient creates a client; call Connect to dial
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:  config,
		logger:  logger.With("component", "client", "server", config.ServerAddr),
		pending: make(map[string]chan protocol.Response),
		events:  make(chan playback.Event, eventBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect dials the server and waits for server/hello
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: discovery.ControlPath}
	c.logger.Debug("connecting", "url", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	if err := c.handshake(conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readMessages()
	return nil
}

// handshake reads the server's greeting
func (c *Client) handshake(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var msg struct {
		Type    string               `json:"type"`
		Payload protocol.ServerHello `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}
	if msg.Type != protocol.TypeServerHello {
		return fmt.Errorf("expected %s, got %s", protocol.TypeServerHello, msg.Type)
	}

	c.hello = msg.Payload
	c.logger.Debug("handshake complete", "server_id", c.hello.ServerID, "name", c.hello.Name)
	return nil
}

// Hello returns the server's greeting
func (c *Client) Hello() protocol.ServerHello {
	return c.hello
}

// Events returns playback events broadcast by the server. The channel is
// closed when the connection ends.
func (c *Client) Events() <-chan playback.Event {
	return c.events
}

// Call sends a command and decodes its result into result, which may be nil
func (c *Client) Call(ctx context.Context, command string, payload, result any) error {
	id := strconv.FormatUint(c.seq.Add(1), 10)
	respCh := make(chan protocol.Response, 1)

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = respCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := map[string]any{"id": id, "type": command}
	if payload != nil {
		req["payload"] = payload
	}

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", command, err)
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return ErrClosed
		}
		if resp.Error != nil {
			return &RemoteError{Command: command, Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if result == nil || resp.Result == nil {
			return nil
		}
		raw, _ := resp.Result.(json.RawMessage)
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", command, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	}
}

// readMessages routes responses to callers and events to Events
func (c *Client) readMessages() {
	defer c.Close()
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				c.logger.Debug("read error", "error", err)
			}
			return
		}

		c.handleJSONMessage(data)
	}
}

// handleJSONMessage routes one server message
func (c *Client) handleJSONMessage(data []byte) {
	var resp rawResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("failed to parse message", "error", err)
		return
	}

	if resp.Type == protocol.TypePlaybackEvent {
		var msg struct {
			Payload playback.Event `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("failed to parse event", "error", err)
			return
		}
		c.queueEvent(msg.Payload)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("response without caller", "id", resp.ID, "type", resp.Type)
		return
	}

	out := protocol.Response{ID: resp.ID, Type: resp.Type, OK: resp.OK, Error: resp.Error}
	if len(resp.Result) > 0 {
		out.Result = resp.Result
	}
	ch <- out
}

// queueEvent never blocks the read loop. When the buffer is full, ordinary
// events are dropped and terminal events displace the oldest queued event.
func (c *Client) queueEvent(e playback.Event) {
	for {
		select {
		case c.events <- e:
			return
		default:
		}

		if !e.IsTerminal() {
			c.logger.Warn("event buffer full, dropping event", "event", string(e.Type))
			return
		}
		select {
		case dropped := <-c.events:
			c.logger.Warn("event buffer full, dropping event", "event", string(dropped.Type))
		default:
		}
	}
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		_ = c.conn.Close()
		c.logger.Debug("connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
