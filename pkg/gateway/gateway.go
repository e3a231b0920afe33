// Package gateway binds browser WebSocket connections to desktop sessions.
// Every request is posted to the session's loop; whenever the loop drains,
// one snapshot of the whole desktop goes back to the browser.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/antibyte/webdesk/pkg/auth"
	"github.com/antibyte/webdesk/pkg/configuration"
	"github.com/antibyte/webdesk/pkg/logger"
	"github.com/antibyte/webdesk/pkg/metrics"
	"github.com/antibyte/webdesk/pkg/notify"
	"github.com/antibyte/webdesk/pkg/resources"
	"github.com/antibyte/webdesk/pkg/shared"

	"github.com/gorilla/websocket"
)

func getWriteWait() time.Duration {
	return configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Network", "pong_timeout", 90*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Network", "max_message_size_kb", 64) * 1024)
}

func getMaxChannelBuffer() int {
	return configuration.GetInt("Network", "max_channel_buffer", 256)
}

var errClientClosed = errors.New("client closed")

// Client is one browser connection.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	session   *resources.DesktopSession
	ipAddress string
	handler   *Handler

	shutdown  chan struct{}
	closeOnce sync.Once
	unsub     func()
}

// enqueue hands a frame to the write pump, giving up after a second.
func (c *Client) enqueue(data []byte) error {
	select {
	case <-c.shutdown:
		return errClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.shutdown:
		return errClientClosed
	case <-time.After(time.Second):
		logger.WebSocketWarn("Send timeout for session %s", c.session.ID)
		return errors.New("send timeout")
	}
}

// Close stops the write pump, which closes the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.shutdown) })
}

// Handler serves the desktop WebSocket.
type Handler struct {
	sessions  *resources.SessionManager
	clients   *ClientManager
	validator *JSONValidator
	upgrader  websocket.Upgrader
}

// NewHandler creates a handler over sessions.
func NewHandler(sessions *resources.SessionManager) *Handler {
	h := &Handler{
		sessions:  sessions,
		clients:   NewClientManager(),
		validator: NewJSONValidator(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
	return h
}

// Clients exposes the connection registry.
func (h *Handler) Clients() *ClientManager { return h.clients }

// checkOrigin accepts same-host origins and those listed in
// [Server] allowed_origins. Requests without an Origin are refused.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logger.SecurityWarn("WebSocket request without Origin header rejected")
		return false
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	for _, allowed := range configuration.GetList("Server", "allowed_origins", "http://localhost:8080,http://127.0.0.1:8080") {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logger.SecurityWarn("WebSocket request from disallowed origin rejected: %s", origin)
	return false
}

// resolveSession reattaches the session named by a valid guest token, or
// creates a fresh one. The returned token is bound to the session.
func (h *Handler) resolveSession(r *http.Request, clientIP string) (*resources.DesktopSession, string, error) {
	if tokenString, err := auth.ExtractTokenFromRequest(r); err == nil {
		claims, err := auth.ValidateGuestToken(tokenString)
		switch {
		case err != nil:
			logger.AuthWarn("Ignoring invalid token from %s: %v", clientIP, err)
		case ValidateSessionID(claims.SessionID) != nil:
			logger.SecurityWarn("Token from %s carries a malformed session id", clientIP)
		default:
			if s, ok := h.sessions.Get(claims.SessionID); ok {
				logger.WebSocketInfo("Reattaching %s to desktop session %s", clientIP, s.ID)
				return s, tokenString, nil
			}
			logger.WebSocketInfo("Session %s from token has expired, creating a new one", claims.SessionID)
		}
	}

	s, err := h.sessions.Create(clientIP)
	if err != nil {
		return nil, "", err
	}
	token, err := auth.GenerateGuestToken(s.ID)
	if err != nil {
		h.sessions.Remove(s.ID)
		return nil, "", err
	}
	return s, token, nil
}

// HandleWebSocket upgrades the request and runs the client until the
// connection ends.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !checkOrigin(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	clientIP := auth.GetClientIP(r)
	session, token, err := h.resolveSession(r, clientIP)
	if err != nil {
		if errors.Is(err, resources.ErrSessionLimit) {
			http.Error(w, "Too many sessions from this address", http.StatusTooManyRequests)
			return
		}
		logger.WebSocketError("Session for %s could not be created: %v", clientIP, err)
		http.Error(w, "Session could not be created", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WebSocketWarn("Upgrade failed for %s: %v", clientIP, err)
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, getMaxChannelBuffer()),
		session:   session,
		ipAddress: clientIP,
		handler:   h,
		shutdown:  make(chan struct{}),
	}
	if previous := h.clients.AddClient(session.ID, client); previous != nil {
		logger.WebSocketInfo("Session %s opened in a new connection, closing the old one", session.ID)
		previous.Close()
	}
	session.Attach()
	metrics.WebSocketConnected()

	sessionID := session.ID
	go client.writePump()
	client.sendMessage(shared.Message{Type: shared.MessageTypeSession, SessionID: sessionID, Token: token})

	session.Loop.SetIdleHook(func() {
		snapshot := session.Desktop.Snapshot()
		if err := h.clients.SendToClient(sessionID, shared.SnapshotMessage(snapshot)); err != nil && !errors.Is(err, ErrClientNotFound) {
			logger.WebSocketDebug("Snapshot for session %s not delivered: %v", sessionID, err)
		}
	})
	// The loop drains after this call, which pushes the first snapshot.
	session.Loop.Call(func() {
		client.unsub = session.Desktop.Notifications().Subscribe(func(n notify.Notification) {
			client.sendMessage(shared.Message{Type: shared.MessageTypeNotification, Notifications: []notify.Notification{n}})
		})
	})

	logger.WebSocketInfo("Client %s connected to session %s", clientIP, sessionID)
	client.readPump()
}

func (c *Client) sendMessage(msg shared.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.WebSocketError("Failed to marshal %s message: %v", msg.Type, err)
		return
	}
	if err := c.enqueue(data); err != nil {
		logger.WebSocketDebug("Message %s for session %s dropped: %v", msg.Type, c.session.ID, err)
	}
}

func (c *Client) cleanup() {
	c.Close()
	if c.unsub != nil {
		c.session.Loop.Post(c.unsub)
	}
	c.handler.clients.RemoveClient(c.session.ID, c)
	c.session.Detach()
	metrics.WebSocketDisconnected()
	logger.WebSocketInfo("Client %s disconnected from session %s", c.ipAddress, c.session.ID)
}

// readPump decodes requests and posts them to the session loop.
func (c *Client) readPump() {
	defer c.cleanup()

	c.conn.SetReadLimit(getMaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.WebSocketWarn("Unexpected close for client %s: %v", c.ipAddress, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))

		if err := c.handler.clients.CheckRateLimit(c.ipAddress); err != nil {
			c.sendMessage(shared.ErrorMessage("Too many requests"))
			continue
		}
		if err := c.handler.validator.ValidateJSON(message); err != nil {
			logger.SecurityWarn("Invalid JSON from client %s: %v", c.ipAddress, err)
			c.sendMessage(shared.ErrorMessage("Invalid request format"))
			continue
		}
		var req shared.Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.sendMessage(shared.ErrorMessage("Invalid request format"))
			continue
		}

		c.session.Touch()
		metrics.RecordMessage(string(req.Type))
		if req.Type == shared.RequestKeepalive {
			continue
		}

		session := c.session
		posted := session.Loop.Post(func() {
			if err := dispatch(session.Desktop, req); err != nil {
				logger.WebSocketDebug("Request %s rejected for session %s: %v", req.Type, session.ID, err)
				c.sendMessage(shared.ErrorMessage(err.Error()))
			}
		})
		if !posted {
			logger.WebSocketInfo("Session %s has ended, closing client %s", session.ID, c.ipAddress)
			return
		}
	}
}

// writePump serialises frames and pings onto the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.WebSocketDebug("Write to client %s failed: %v", c.ipAddress, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.WebSocketDebug("Ping to client %s failed: %v", c.ipAddress, err)
				return
			}
		case <-c.shutdown:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-c.session.Loop.Done():
			return
		}
	}
}
