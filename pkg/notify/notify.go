// Package notify is the per-desktop notification queue. Each desktop gets its
// own Queue; there is no package-level instance.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level classifies a notification for styling.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one toast shown on the desktop.
type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Created time.Time `json:"created"`
}

// Listener receives every pushed notification.
type Listener func(Notification)

// Queue holds undismissed notifications, oldest first. When the cap is
// reached the oldest entry is dropped.
type Queue struct {
	mu        sync.Mutex
	limit     int
	items     []Notification
	listeners map[int]Listener
	nextID    int
	now       func() time.Time
}

// NewQueue creates a queue keeping at most limit notifications (<=0 means 20).
func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = 20
	}
	return &Queue{limit: limit, listeners: make(map[int]Listener), now: time.Now}
}

// Push appends a notification and returns its id.
func (q *Queue) Push(level Level, title, message string) string {
	n := Notification{
		ID:      uuid.NewString(),
		Level:   level,
		Title:   title,
		Message: message,
	}

	q.mu.Lock()
	n.Created = q.now()
	q.items = append(q.items, n)
	if over := len(q.items) - q.limit; over > 0 {
		q.items = append([]Notification(nil), q.items[over:]...)
	}
	listeners := make([]Listener, 0, len(q.listeners))
	for _, l := range q.listeners {
		listeners = append(listeners, l)
	}
	q.mu.Unlock()

	for _, l := range listeners {
		l(n)
	}
	return n.ID
}

// Info is shorthand for Push(LevelInfo, ...).
func (q *Queue) Info(title, message string) string {
	return q.Push(LevelInfo, title, message)
}

// Pending returns a copy of the undismissed notifications.
func (q *Queue) Pending() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Dismiss removes a notification. It reports whether the id was found.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every notification.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// Subscribe registers l and returns a function that removes it.
func (q *Queue) Subscribe(l Listener) (unsubscribe func()) {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = l
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}
