package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Manual is a virtual-time scheduler. Nothing fires until Advance is called;
// tasks then run in (deadline, schedule order) order on the caller's goroutine.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks []*manualTask
}

// NewManual returns a scheduler at virtual time zero.
func NewManual() *Manual { return &Manual{} }

type manualTask struct {
	m        *Manual
	deadline time.Duration
	seq      uint64
	fn       func()
	done     bool
}

func (t *manualTask) Cancel() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// After implements Scheduler.
func (m *Manual) After(d time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTask{m: m, deadline: m.now + d, seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Now returns the elapsed virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of tasks waiting to fire.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.done {
			n++
		}
	}
	return n
}

// Advance moves virtual time forward by d and fires every task due by then,
// including tasks scheduled by callbacks within the window. It returns the
// number of callbacks run.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	fired := 0
	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
		fired++
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
	return fired
}

// RunAll advances until no task is pending.
func (m *Manual) RunAll() int {
	fired := 0
	for {
		m.mu.Lock()
		var last time.Duration = -1
		for _, t := range m.tasks {
			if !t.done && t.deadline > last {
				last = t.deadline
			}
		}
		now := m.now
		m.mu.Unlock()
		if last < 0 {
			return fired
		}
		fired += m.Advance(last - now)
	}
}

// nextDue pops the earliest live task with deadline <= target.
func (m *Manual) nextDue(target time.Duration) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.done {
			live = append(live, t)
		}
	}
	m.tasks = live
	if len(live) == 0 {
		return nil
	}
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].deadline != live[j].deadline {
			return live[i].deadline < live[j].deadline
		}
		return live[i].seq < live[j].seq
	})
	next := live[0]
	if next.deadline > target {
		return nil
	}
	next.done = true
	if next.deadline > m.now {
		m.now = next.deadline
	}
	return next
}
