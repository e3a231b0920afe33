// Package resources owns the live desktop sessions: one event loop and one
// desktop per visitor, capped per IP and reaped when idle.
package resources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/antibyte/webdesk/pkg/auth"
	"github.com/antibyte/webdesk/pkg/configuration"
	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/logger"
	"github.com/antibyte/webdesk/pkg/metrics"
	"github.com/antibyte/webdesk/pkg/scheduler"

	"github.com/google/uuid"
)

var (
	ErrSessionLimit    = errors.New("maximum sessions per IP reached")
	ErrSessionNotFound = errors.New("session not found")
)

// Builder creates the desktop for a new session. It runs on the session's
// loop, and sched is that loop.
type Builder func(sched scheduler.Scheduler) *desktop.Desktop

// DesktopSession is one visitor's desktop together with the loop that
// serialises every access to it.
type DesktopSession struct {
	ID        string
	IPAddress string
	CreatedAt time.Time
	Loop      *scheduler.Loop
	// Desktop must only be touched from functions posted to Loop.
	Desktop *desktop.Desktop

	mu           sync.Mutex
	lastActivity time.Time
	connections  int
	cancel       context.CancelFunc
}

// Touch records activity now.
func (s *DesktopSession) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *DesktopSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Attach counts a WebSocket connection bound to the session.
func (s *DesktopSession) Attach() {
	s.mu.Lock()
	s.connections++
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *DesktopSession) Detach() {
	s.mu.Lock()
	if s.connections > 0 {
		s.connections--
	}
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *DesktopSession) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// SessionManager is the registry of live desktop sessions.
type SessionManager struct {
	build      Builder
	maxPerIP   int
	loopBuffer int

	sessionsMutex sync.RWMutex
	sessions      map[string]*DesktopSession
}

// NewSessionManager creates an empty registry.
func NewSessionManager(build Builder) *SessionManager {
	return &SessionManager{
		build:      build,
		maxPerIP:   configuration.GetInt("Session", "max_sessions_per_ip", 5),
		loopBuffer: configuration.GetInt("Network", "max_channel_buffer", 256),
		sessions:   make(map[string]*DesktopSession),
	}
}

// Create starts a loop, builds a desktop on it and registers the session.
func (m *SessionManager) Create(ipAddress string) (*DesktopSession, error) {
	m.sessionsMutex.Lock()
	if m.maxPerIP > 0 && m.countForIP(ipAddress) >= m.maxPerIP {
		m.sessionsMutex.Unlock()
		metrics.RecordSessionRejected()
		logger.SecurityWarn("Session limit reached for IP %s (%d)", ipAddress, m.maxPerIP)
		return nil, fmt.Errorf("%w: %s", ErrSessionLimit, ipAddress)
	}

	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	s := &DesktopSession{
		ID:           uuid.NewString(),
		IPAddress:    ipAddress,
		CreatedAt:    now,
		Loop:         scheduler.NewLoop(m.loopBuffer),
		lastActivity: now,
		cancel:       cancel,
	}
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.sessionsMutex.Unlock()

	go s.Loop.Run(ctx)
	if !s.Loop.Call(func() { s.Desktop = m.build(s.Loop) }) || s.Desktop == nil {
		m.drop(s.ID)
		cancel()
		return nil, fmt.Errorf("desktop for session %s could not be built", s.ID)
	}

	metrics.SetActiveDesktops(count)
	logger.Info(logger.AreaSession, "Desktop session %s created for %s", s.ID, ipAddress)
	return s, nil
}

// CreateSession creates a session and returns only its id. A refused
// session reports auth.ErrTooManySessions.
func (m *SessionManager) CreateSession(ipAddress string) (string, error) {
	s, err := m.Create(ipAddress)
	if errors.Is(err, ErrSessionLimit) {
		return "", fmt.Errorf("%w: %v", auth.ErrTooManySessions, err)
	}
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

// countForIP must be called with sessionsMutex held.
func (m *SessionManager) countForIP(ipAddress string) int {
	n := 0
	for _, s := range m.sessions {
		if s.IPAddress == ipAddress {
			n++
		}
	}
	return n
}

func (m *SessionManager) drop(id string) (*DesktopSession, int) {
	m.sessionsMutex.Lock()
	defer m.sessionsMutex.Unlock()
	s := m.sessions[id]
	delete(m.sessions, id)
	return s, len(m.sessions)
}

// Get returns the session with id.
func (m *SessionManager) Get(id string) (*DesktopSession, bool) {
	m.sessionsMutex.RLock()
	defer m.sessionsMutex.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove shuts the desktop down, cancelling every pending timer, and stops
// its loop.
func (m *SessionManager) Remove(id string) error {
	s, count := m.drop(id)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Loop.Call(func() {
		if s.Desktop != nil {
			s.Desktop.Shutdown()
		}
	})
	s.cancel()
	s.Loop.Stop()
	metrics.SetActiveDesktops(count)
	logger.Info(logger.AreaSession, "Desktop session %s removed after %v", id, time.Since(s.CreatedAt).Round(time.Second))
	return nil
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.sessionsMutex.RLock()
	defer m.sessionsMutex.RUnlock()
	return len(m.sessions)
}

// CleanupInactiveSessions removes sessions without a connection whose last
// activity is older than maxInactive. It returns how many were removed.
func (m *SessionManager) CleanupInactiveSessions(maxInactive time.Duration) int {
	now := time.Now()
	var idle []string
	m.sessionsMutex.RLock()
	for id, s := range m.sessions {
		if s.Connections() == 0 && now.Sub(s.LastActivity()) > maxInactive {
			idle = append(idle, id)
		}
	}
	m.sessionsMutex.RUnlock()

	removed := 0
	for _, id := range idle {
		if err := m.Remove(id); err == nil {
			removed++
		}
	}
	if removed > 0 {
		logger.Info(logger.AreaSession, "Cleaned up %d inactive desktop sessions", removed)
	}
	return removed
}

// StartPeriodicCleanup runs the janitor until ctx is done.
func (m *SessionManager) StartPeriodicCleanup(ctx context.Context) {
	interval := configuration.GetDuration("Session", "cleanup_interval", time.Minute)
	maxInactive := configuration.GetDuration("Session", "max_inactive_time", 30*time.Minute)
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupInactiveSessions(maxInactive)
			}
		}
	}()
}

// Shutdown removes every session.
func (m *SessionManager) Shutdown() {
	m.sessionsMutex.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.sessionsMutex.RUnlock()
	for _, id := range ids {
		m.Remove(id)
	}
}

// SessionStats summarises the registry.
type SessionStats struct {
	TotalSessions int `json:"total_sessions"`
	Connected     int `json:"connected"`
	UniqueIPs     int `json:"unique_ips"`
}

func (m *SessionManager) GetSessionStats() SessionStats {
	m.sessionsMutex.RLock()
	defer m.sessionsMutex.RUnlock()
	ips := make(map[string]bool)
	stats := SessionStats{TotalSessions: len(m.sessions)}
	for _, s := range m.sessions {
		ips[s.IPAddress] = true
		if s.Connections() > 0 {
			stats.Connected++
		}
	}
	stats.UniqueIPs = len(ips)
	return stats
}
