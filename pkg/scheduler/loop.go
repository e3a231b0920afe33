package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is a single-threaded event loop. Posted functions run one at a time on
// the goroutine that called Run; timers fire by posting back into the loop.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once

	hookMu sync.Mutex
	hook   func()
}

// NewLoop creates a loop with the given queue capacity.
func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// SetIdleHook registers fn to run whenever the queue drains after at least one
// function ran. The gateway uses it to push a single snapshot per burst.
func (l *Loop) SetIdleHook(fn func()) {
	l.hookMu.Lock()
	l.hook = fn
	l.hookMu.Unlock()
}

// Post enqueues fn. It blocks while the queue is full and returns false once
// the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call posts fn and waits for it to finish.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Run processes the queue until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer l.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case fn := <-l.queue:
			fn()
			if len(l.queue) == 0 {
				l.runHook()
			}
		}
	}
}

func (l *Loop) runHook() {
	l.hookMu.Lock()
	hook := l.hook
	l.hookMu.Unlock()
	if hook != nil {
		hook()
	}
}

// Stop ends Run. Pending functions are discarded.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} { return l.done }

// After implements Scheduler. fn runs on the loop goroutine.
func (l *Loop) After(d time.Duration, fn func()) Task {
	t := &loopTask{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.cancelled.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

type loopTask struct {
	timer     *time.Timer
	cancelled atomic.Bool
}

func (t *loopTask) Cancel() bool {
	t.timer.Stop()
	return t.cancelled.CompareAndSwap(false, true)
}
