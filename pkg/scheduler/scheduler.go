// Package scheduler provides the cancellable one-shot timers that drive every
// delayed effect on a desktop: staged script output, canned command delays,
// deferred window spawns.
//
// All callbacks belonging to one desktop run on that desktop's Loop, so
// desktop state is only ever touched from a single goroutine.
package scheduler

import (
	"sync"
	"time"
)

// Task is the handle returned for a scheduled callback.
type Task interface {
	// Cancel stops the callback from running. It reports whether the task was
	// still pending.
	Cancel() bool
}

// Scheduler schedules fn to run once after d.
type Scheduler interface {
	After(d time.Duration, fn func()) Task
}

// Group tracks the tasks of one owner (a terminal session, a window) and
// cancels all of them on Close. Callbacks that race with Close are dropped.
type Group struct {
	sched Scheduler

	mu     sync.Mutex
	tasks  map[*groupTask]struct{}
	closed bool
}

// NewGroup returns a group scheduling on s.
func NewGroup(s Scheduler) *Group {
	return &Group{sched: s, tasks: make(map[*groupTask]struct{})}
}

type groupTask struct {
	group *Group
	inner Task
}

func (t *groupTask) Cancel() bool {
	if !t.group.forget(t) {
		return false
	}
	t.inner.Cancel()
	return true
}

// After schedules fn unless the group is already closed, in which case the
// returned task is inert.
func (g *Group) After(d time.Duration, fn func()) Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := &groupTask{group: g}
	if g.closed {
		t.inner = noopTask{}
		return t
	}
	g.tasks[t] = struct{}{}
	t.inner = g.sched.After(d, func() {
		if g.forget(t) {
			fn()
		}
	})
	return t
}

// forget removes t and reports whether it was still live.
func (g *Group) forget(t *groupTask) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	if _, ok := g.tasks[t]; !ok {
		return false
	}
	delete(g.tasks, t)
	return true
}

// Pending returns the number of tasks that have neither fired nor been cancelled.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks)
}

// Closed reports whether Close has been called.
func (g *Group) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close cancels every pending task. Further After calls are ignored.
func (g *Group) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	pending := make([]*groupTask, 0, len(g.tasks))
	for t := range g.tasks {
		pending = append(pending, t)
	}
	g.tasks = nil
	g.mu.Unlock()

	for _, t := range pending {
		t.inner.Cancel()
	}
}

type noopTask struct{}

func (noopTask) Cancel() bool { return false }
