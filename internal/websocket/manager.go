// Package websocket pushes rebuild notifications to preview pages.
//
// A single hub goroutine owns the set of connected clients. Connections are
// registered and unregistered through channels, and broadcasts are fanned out
// to each client's buffered send queue, which a per-client write pump drains.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/bbcoder/internal/logging"
)

const (
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	sendBuffer   = 16
)

// Options configure a Manager.
type Options struct {
	// OriginPatterns lists extra origins allowed to connect, in the host
	// pattern syntax of websocket.AcceptOptions. Same-host origins are always
	// allowed.
	OriginPatterns []string
}

// Manager handles WebSocket connection management and broadcasting.
type Manager struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	opts   Options
	logger logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	hubDone      chan struct{}
	shutdownOnce sync.Once
}

// NewManager creates a manager and starts its hub.
func NewManager(opts Options, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	manager := &Manager{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client, 32),
		unregister: make(chan *websocket.Conn, 32),
		opts:       opts,
		logger:     logger.WithComponent("websocket"),
		ctx:        ctx,
		cancel:     cancel,
		hubDone:    make(chan struct{}),
	}

	go manager.runHub()

	return manager
}

// ServeHTTP upgrades the request and registers the connection.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.IsShutdown() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  m.opts.OriginPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		// Accept has already written the error response
		m.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		remoteAddr: r.RemoteAddr,
	}

	select {
	case m.register <- client:
	case <-m.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "Server shutting down")
		return
	}

	go m.handleClient(client)
}

// runHub manages client connections and broadcasting
func (m *Manager) runHub() {
	defer close(m.hubDone)
	for {
		select {
		case client := <-m.register:
			m.registerClient(client)

		case conn := <-m.unregister:
			m.unregisterClient(conn, websocket.StatusNormalClosure, "")

		case message := <-m.broadcast:
			m.broadcastToClients(message)

		case <-m.ctx.Done():
			m.clientsMutex.RLock()
			conns := make([]*websocket.Conn, 0, len(m.clients))
			for conn := range m.clients {
				conns = append(conns, conn)
			}
			m.clientsMutex.RUnlock()
			for _, conn := range conns {
				m.unregisterClient(conn, websocket.StatusGoingAway, "Server shutdown")
			}
			return
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	m.clients[client.conn] = client
	total := len(m.clients)
	m.clientsMutex.Unlock()

	m.logger.Debug(m.ctx, "WebSocket client connected", "remote", client.remoteAddr, "clients", total)
}

// unregisterClient removes a client. Only the hub goroutine calls it, so the
// send channel is closed exactly once.
func (m *Manager) unregisterClient(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	m.clientsMutex.Lock()
	client, exists := m.clients[conn]
	if exists {
		delete(m.clients, conn)
		close(client.send)
	}
	total := len(m.clients)
	m.clientsMutex.Unlock()

	if exists {
		// Close waits for the peer's close frame; do not hold up the hub.
		go func() { _ = conn.Close(code, reason) }()
		m.logger.Debug(context.Background(), "WebSocket client disconnected", "remote", client.remoteAddr, "clients", total)
	}
}

// broadcastToClients queues message on every client. Clients that cannot
// keep up are dropped.
func (m *Manager) broadcastToClients(message []byte) {
	m.clientsMutex.RLock()
	var slow []*websocket.Conn
	for conn, client := range m.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, conn)
		}
	}
	m.clientsMutex.RUnlock()

	for _, conn := range slow {
		m.unregisterClient(conn, websocket.StatusPolicyViolation, "Client too slow")
	}
}

// handleClient runs the write pump and reads until the connection closes.
func (m *Manager) handleClient(client *Client) {
	go m.writeToClient(client)

	// Preview pages never send anything; reading services control frames
	// and notices the close.
	for {
		if _, _, err := client.conn.Read(m.ctx); err != nil {
			break
		}
	}

	// After shutdown the hub may have exited without ever registering this
	// client, so the connection is closed here.
	if m.ctx.Err() != nil {
		_ = client.conn.Close(websocket.StatusGoingAway, "Server shutdown")
		return
	}
	select {
	case m.unregister <- client.conn:
	case <-m.ctx.Done():
		_ = client.conn.Close(websocket.StatusGoingAway, "Server shutdown")
	}
}

func (m *Manager) writeToClient(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(m.ctx, writeTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				m.logger.Debug(m.ctx, "WebSocket write failed", "remote", client.remoteAddr, "error", err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(m.ctx, writeTimeout)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-m.ctx.Done():
			return
		}
	}
}

// BroadcastMessage sends a message to all connected WebSocket clients
func (m *Manager) BroadcastMessage(message UpdateMessage) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	data, err := json.Marshal(message)
	if err != nil {
		m.logger.Error(m.ctx, err, "Failed to marshal broadcast message")
		return
	}

	select {
	case m.broadcast <- data:
	case <-m.ctx.Done():
	default:
		m.logger.Warn(m.ctx, nil, "Broadcast channel full, dropping message", "type", message.Type)
	}
}

// ConnectedClients returns the number of connected clients
func (m *Manager) ConnectedClients() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}

// Shutdown closes every connection and stops the hub. It waits for the hub
// until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(m.cancel)

	select {
	case <-m.hubDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown returns whether the manager has been shut down
func (m *Manager) IsShutdown() bool {
	return m.ctx.Err() != nil
}
