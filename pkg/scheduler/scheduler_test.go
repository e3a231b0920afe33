package scheduler

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	m := NewManual()
	var got []string
	m.After(300*time.Millisecond, func() { got = append(got, "c") })
	m.After(100*time.Millisecond, func() { got = append(got, "a") })
	m.After(100*time.Millisecond, func() { got = append(got, "b") })

	if n := m.Advance(99 * time.Millisecond); n != 0 {
		t.Fatalf("nothing should fire before 100ms, fired %d", n)
	}
	m.Advance(time.Second)
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestManualNestedScheduleUsesFiringTime(t *testing.T) {
	m := NewManual()
	var at time.Duration
	m.After(100*time.Millisecond, func() {
		m.After(50*time.Millisecond, func() { at = m.Now() })
	})
	m.Advance(149 * time.Millisecond)
	if at != 0 {
		t.Fatal("nested task fired too early")
	}
	m.Advance(time.Millisecond)
	if at != 150*time.Millisecond {
		t.Errorf("nested task fired at %v, want 150ms", at)
	}
}

func TestManualCancel(t *testing.T) {
	m := NewManual()
	fired := false
	task := m.After(10*time.Millisecond, func() { fired = true })
	if !task.Cancel() {
		t.Error("first cancel should report pending")
	}
	if task.Cancel() {
		t.Error("second cancel should report not pending")
	}
	m.RunAll()
	if fired {
		t.Error("cancelled task fired")
	}
}

func TestGroupCloseCancelsPending(t *testing.T) {
	m := NewManual()
	g := NewGroup(m)
	count := 0
	g.After(10*time.Millisecond, func() { count++ })
	g.After(20*time.Millisecond, func() { count++ })
	m.Advance(10 * time.Millisecond)
	if count != 1 || g.Pending() != 1 {
		t.Fatalf("count=%d pending=%d after first deadline", count, g.Pending())
	}

	g.Close()
	g.After(time.Millisecond, func() { count++ })
	m.RunAll()
	if count != 1 {
		t.Errorf("callbacks ran after Close: count=%d", count)
	}
	if !g.Closed() || g.Pending() != 0 {
		t.Error("group should be closed and empty")
	}
}

func TestGroupTaskCancel(t *testing.T) {
	m := NewManual()
	g := NewGroup(m)
	fired := false
	task := g.After(time.Millisecond, func() { fired = true })
	task.Cancel()
	m.RunAll()
	if fired || g.Pending() != 0 {
		t.Error("cancelled group task should neither fire nor stay pending")
	}
}

func TestLoopRunsPostedAndTimers(t *testing.T) {
	loop := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var hooks atomic.Int32
	loop.SetIdleHook(func() { hooks.Add(1) })
	go loop.Run(ctx)

	done := make(chan struct{})
	loop.After(5*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	ran := false
	if !loop.Call(func() { ran = true }) || !ran {
		t.Error("Call should run the function on the loop")
	}
	deadline := time.Now().Add(2 * time.Second)
	for hooks.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if hooks.Load() == 0 {
		t.Error("idle hook never ran")
	}

	cancelled := loop.After(time.Hour, func() {})
	if !cancelled.Cancel() {
		t.Error("pending loop task should cancel")
	}
}

func TestLoopPostAfterStop(t *testing.T) {
	loop := NewLoop(1)
	loop.Stop()
	if loop.Post(func() {}) {
		t.Error("Post should fail once the loop stopped")
	}
}
