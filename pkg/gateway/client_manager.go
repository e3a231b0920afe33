package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/antibyte/webdesk/pkg/configuration"
	"github.com/antibyte/webdesk/pkg/logger"
	"github.com/antibyte/webdesk/pkg/shared"
)

// ErrClientNotFound is returned when no connection is bound to a session.
var ErrClientNotFound = errors.New("client not found")

// rateLimitInfo counts requests per IP in a one minute window.
type rateLimitInfo struct {
	requests  int
	lastReset time.Time
}

// ClientManager maps desktop sessions to their current connection. A session
// has at most one client; a newer connection replaces the older one.
type ClientManager struct {
	clients    map[string]*Client
	rateLimits map[string]*rateLimitInfo
	maxPerMin  int
	mu         sync.RWMutex
}

func NewClientManager() *ClientManager {
	return &ClientManager{
		clients:    make(map[string]*Client),
		rateLimits: make(map[string]*rateLimitInfo),
		maxPerMin:  configuration.GetInt("Network", "max_messages_per_minute", 1200),
	}
}

// AddClient binds client to sessionID and returns the connection it
// replaced, if any. The caller shuts the replaced client down.
func (cm *ClientManager) AddClient(sessionID string, client *Client) *Client {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	previous := cm.clients[sessionID]
	cm.clients[sessionID] = client
	logger.WebSocketDebug("Client added for session %s", sessionID)
	return previous
}

// RemoveClient unbinds client. A client that was already replaced leaves the
// newer binding alone. It reports whether anything was removed.
func (cm *ClientManager) RemoveClient(sessionID string, client *Client) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if current, ok := cm.clients[sessionID]; ok && current == client {
		delete(cm.clients, sessionID)
		logger.WebSocketDebug("Client removed for session %s", sessionID)
		return true
	}
	return false
}

// SendToClient queues message for the session's current connection.
func (cm *ClientManager) SendToClient(sessionID string, message shared.Message) error {
	cm.mu.RLock()
	client, exists := cm.clients[sessionID]
	cm.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w for session %s", ErrClientNotFound, sessionID)
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return client.enqueue(jsonData)
}

func (cm *ClientManager) GetClientCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

func (cm *ClientManager) HasClient(sessionID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, exists := cm.clients[sessionID]
	return exists
}

// CheckRateLimit counts one request from ipAddress and fails once the
// per-minute budget is spent. Pointer moves are chatty, so the budget is
// generous.
func (cm *ClientManager) CheckRateLimit(ipAddress string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	now := time.Now()
	info, exists := cm.rateLimits[ipAddress]
	if !exists || now.Sub(info.lastReset) > time.Minute {
		info = &rateLimitInfo{lastReset: now}
		cm.rateLimits[ipAddress] = info
	}
	info.requests++
	if cm.maxPerMin > 0 && info.requests > cm.maxPerMin {
		if info.requests == cm.maxPerMin+1 {
			logger.SecurityWarn("Rate limit exceeded for IP %s: %d requests in last minute", ipAddress, info.requests)
		}
		return fmt.Errorf("rate limit exceeded: too many requests from %s", ipAddress)
	}
	return nil
}
