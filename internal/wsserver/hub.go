package wsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeDeadline is the maximum time allowed for a single WebSocket write.
// If the inspector freezes longer than this, the connection is considered dead.
const writeDeadline = 5 * time.Second

// readDeadline allows for ~3 missed pings (pingInterval=30s) before timeout.
const readDeadline = 90 * time.Second

const pingInterval = 30 * time.Second

// maxReadMessageSize limits incoming client requests, which are tiny JSON
// objects.
const maxReadMessageSize = 8 * 1024

var wsUpgrader = websocket.Upgrader{
	// The server binds to loopback only.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
}

var nowFn = time.Now

// HubOptions configures the WebSocket server.
type HubOptions struct {
	// Addr is the listen address. Use "127.0.0.1:0" for OS-assigned port.
	Addr string
	// Snapshot answers client snapshot requests. Optional.
	Snapshot func() any
}

// Hub manages a single WebSocket connection streaming shortcut activity to
// an inspector client. New connections replace existing ones so a reloaded
// inspector page takes over cleanly.
//
// Lock ordering (never acquire in reverse):
//
//	writeMu -> mu
//
// mu protects connection state and the topic subscription set.
// writeMu serializes gorilla/websocket writes.
//
// Write failure policy: any write failure disconnects the client. The
// client must reconnect.
type Hub struct {
	opts    HubOptions
	session string
	seq     atomic.Uint64

	mu         sync.RWMutex
	conn       *websocket.Conn
	subscribed map[string]bool

	writeMu sync.Mutex

	listener net.Listener
	server   *http.Server
	url      string

	closeOnce sync.Once
}

// NewHub creates a Hub with the given options.
// The hub is not started until Start is called.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{
		opts:       opts,
		session:    uuid.NewString(),
		subscribed: make(map[string]bool),
	}
}

// Start begins listening on the configured address and serves WebSocket
// connections. The server itself must be stopped explicitly via Stop.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return fmt.Errorf("wsserver: already started")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}
	h.listener = ln
	h.url = fmt.Sprintf("ws://%s/ws", ln.Addr().String())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)

	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("[DEBUG-WS] server error", "error", serveErr)
		}
	}()

	slog.Info("[DEBUG-WS] inspector started", "url", h.url, "session", h.session)
	return nil
}

// Stop shuts down the HTTP server and closes any active connection.
// Safe to call multiple times.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		conn := h.conn
		h.conn = nil
		h.subscribed = make(map[string]bool)
		h.mu.Unlock()

		if conn != nil {
			h.closeConn(conn, "stop")
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("wsserver: shutdown: %w", err)
			}
		}

		slog.Info("[DEBUG-WS] inspector stopped")
	})
	return stopErr
}

// URL returns the WebSocket URL (e.g. "ws://127.0.0.1:54321/ws"), or ""
// before Start.
func (h *Hub) URL() string {
	return h.url
}

// Session returns the hub's session ID, sent in every hello frame.
func (h *Hub) Session() string {
	return h.session
}

// HasActiveConnection reports whether an inspector client is connected.
func (h *Hub) HasActiveConnection() bool {
	h.mu.RLock()
	active := h.conn != nil
	h.mu.RUnlock()
	return active
}

// Publish sends payload on topic if the connected client subscribed to it.
// It is a no-op with no client. Safe for concurrent use.
func (h *Hub) Publish(topic string, payload any) {
	h.mu.RLock()
	conn := h.conn
	subscribed := h.subscribed[topic]
	h.mu.RUnlock()

	if conn == nil || !subscribed {
		return
	}
	h.send(conn, topic, payload)
}

// Topics returns the current client's subscribed topics, sorted.
func (h *Hub) Topics() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.subscribed))
	for topic := range h.subscribed {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) clearIfCurrent(conn *websocket.Conn) bool {
	h.mu.Lock()
	isCurrent := h.conn == conn
	if isCurrent {
		h.conn = nil
		h.subscribed = make(map[string]bool)
	}
	h.mu.Unlock()
	return isCurrent
}

// closeConn closes a connection that may already be closed by another
// goroutine; that error is expected and logged at Debug.
func (h *Hub) closeConn(conn *websocket.Conn, reason string) {
	if closeErr := conn.Close(); closeErr != nil {
		slog.Debug("[DEBUG-WS] connection close", "reason", reason, "error", closeErr)
	}
}

// writeFrame writes one message under writeMu with a deadline. On failure
// the connection is dropped.
func (h *Hub) writeFrame(conn *websocket.Conn, messageType int, data []byte, what string) bool {
	h.writeMu.Lock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		h.writeMu.Unlock()
		h.clearIfCurrent(conn)
		h.closeConn(conn, "SetWriteDeadline failure")
		slog.Warn("[DEBUG-WS] SetWriteDeadline failed, connection closed", "error", err)
		return false
	}
	err := conn.WriteMessage(messageType, data)
	if clearErr := conn.SetWriteDeadline(time.Time{}); clearErr != nil {
		slog.Debug("[DEBUG-WS] clear write deadline failed (non-fatal)", "error", clearErr)
	}
	h.writeMu.Unlock()

	if err != nil {
		// Clear before logging: warnings are themselves published here.
		h.clearIfCurrent(conn)
		h.closeConn(conn, "write error: "+what)
		slog.Warn("[DEBUG-WS] write failed, connection closed", "frame", what, "error", err)
		return false
	}
	return true
}

func (h *Hub) send(conn *websocket.Conn, topic string, payload any) bool {
	frame, err := EncodeFrame(topic, h.seq.Add(1), nowFn(), payload)
	if err != nil {
		slog.Warn("[DEBUG-WS] failed to encode frame", "topic", topic, "error", err)
		return false
	}
	return h.writeFrame(conn, websocket.TextMessage, frame, topic)
}

func (h *Hub) sendError(conn *websocket.Conn, message string) {
	h.send(conn, TopicError, ErrorPayload{Message: message})
}

// handleWS upgrades HTTP to WebSocket and runs the read pump for the connection.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[DEBUG-WS] upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Warn("[DEBUG-WS] SetReadDeadline failed on new connection", "error", err)
		h.closeConn(conn, "initial SetReadDeadline failure")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	h.mu.Lock()
	oldConn := h.conn
	h.conn = conn
	h.subscribed = make(map[string]bool)
	h.mu.Unlock()

	if oldConn != nil {
		h.closeConn(oldConn, "replaced by new connection")
	}

	slog.Info("[DEBUG-WS] inspector connected", "remoteAddr", conn.RemoteAddr())

	pingDone := make(chan struct{})
	go h.pingLoop(conn, pingDone)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver handleWS recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
		close(pingDone)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "read pump exit")
		slog.Info("[DEBUG-WS] inspector disconnected")
	}()

	hello := Hello{
		Session: h.session,
		Topics:  []string{TopicChange, TopicTrigger, TopicWarning, TopicSnapshot},
	}
	if !h.send(conn, TopicHello, hello) {
		return
	}

	for {
		msgType, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[DEBUG-WS] read error", "error", readErr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var req clientMsg
		if jsonErr := json.Unmarshal(msg, &req); jsonErr != nil {
			slog.Debug("[DEBUG-WS] invalid JSON from client", "error", jsonErr)
			h.sendError(conn, fmt.Sprintf("invalid JSON: %s", jsonErr))
			continue
		}
		h.handleRequest(conn, req)
	}
}

// pingLoop sends periodic pings to detect dead connections. Exits when done
// is closed or a ping fails.
func (h *Hub) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver pingLoop recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.clearIfCurrent(conn)
			h.closeConn(conn, "pingLoop panic recovery")
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !h.writeFrame(conn, websocket.PingMessage, nil, "ping") {
				return
			}
		}
	}
}

func (h *Hub) handleRequest(conn *websocket.Conn, req clientMsg) {
	switch req.Action {
	case subscribeAction, unsubscribeAction:
		if bad := h.applySubscription(conn, req); bad != "" {
			h.sendError(conn, fmt.Sprintf("unknown topic %q", bad))
		}
	case snapshotAction:
		if h.opts.Snapshot == nil {
			h.sendError(conn, "snapshot not available")
			return
		}
		h.send(conn, TopicSnapshot, h.opts.Snapshot())
	default:
		slog.Debug("[DEBUG-WS] unknown action", "action", req.Action)
		h.sendError(conn, fmt.Sprintf("unknown action %q", req.Action))
	}
}

// applySubscription updates the topic set for conn. It returns the first
// rejected topic, or "" when every topic was accepted.
func (h *Hub) applySubscription(conn *websocket.Conn, req clientMsg) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A replaced connection's late messages are discarded.
	if h.conn != conn {
		slog.Debug("[DEBUG-WS] request from stale connection, skipping")
		return ""
	}

	rejected := ""
	for _, topic := range req.Topics {
		if len(topic) > maxTopicLen || !subscribable(topic) {
			if rejected == "" {
				rejected = topic
				if len(rejected) > maxTopicLen {
					rejected = rejected[:maxTopicLen]
				}
			}
			continue
		}
		if req.Action == subscribeAction {
			h.subscribed[topic] = true
		} else {
			delete(h.subscribed, topic)
		}
		slog.Debug("[DEBUG-WS] subscription updated", "action", req.Action, "topic", topic)
	}
	return rejected
}
