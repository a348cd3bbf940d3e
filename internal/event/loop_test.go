// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package event

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// A burst of signals coalesces into few wakeups, never more than one per
// signal, and always at least one.
func TestNotifyCoalescing(t *testing.T) {
	l := NewLoop()
	n := NewNotifier()

	var calls int64
	if err := l.Register(n, func() { atomic.AddInt64(&calls, 1) }); err != nil {
		t.Fatalf("register failed: %s", err)
	}
	go l.Run()
	defer l.Stop()

	for i := 0; i < 100; i++ {
		n.Notify()
	}
	waitFor(t, "a callback", func() bool { return atomic.LoadInt64(&calls) >= 1 })

	if c := atomic.LoadInt64(&calls); c > 100 {
		t.Errorf("%d callbacks for 100 signals", c)
	}

	// Quiet notifier stays quiet.
	before := atomic.LoadInt64(&calls)
	time.Sleep(50 * time.Millisecond)
	if after := atomic.LoadInt64(&calls); after != before {
		t.Errorf("callback ran %d times without a signal", after-before)
	}
}

// Signals that arrive before Run are delivered once the loop starts.
func TestNotifyBeforeRun(t *testing.T) {
	l := NewLoop()
	n := NewNotifier()

	var calls int64
	if err := l.Register(n, func() { atomic.AddInt64(&calls, 1) }); err != nil {
		t.Fatalf("register failed: %s", err)
	}

	n.Notify()
	go l.Run()
	defer l.Stop()

	waitFor(t, "the early signal", func() bool { return atomic.LoadInt64(&calls) == 1 })
}

// Callbacks of different notifiers run on the one loop goroutine, never
// concurrently.
func TestCallbacksSerialized(t *testing.T) {
	l := NewLoop()
	a, b := NewNotifier(), NewNotifier()

	var inflight, calls int64
	cb := func() {
		if c := atomic.AddInt64(&inflight, 1); c != 1 {
			t.Errorf("%d callbacks running concurrently", c)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&inflight, -1)
		atomic.AddInt64(&calls, 1)
	}
	l.Register(a, cb)
	l.Register(b, cb)
	go l.Run()
	defer l.Stop()

	for i := 0; i < 50; i++ {
		a.Notify()
		b.Notify()
	}
	waitFor(t, "both sides to fire", func() bool { return atomic.LoadInt64(&calls) >= 2 })
}

// Registration is only legal before the loop starts, and only once per
// notifier.
func TestRegisterErrors(t *testing.T) {
	l := NewLoop()
	n := NewNotifier()

	if err := l.Register(n, func() {}); err != nil {
		t.Fatalf("first register failed: %s", err)
	}
	if err := l.Register(n, func() {}); err == nil {
		t.Error("double register should have failed")
	}

	go l.Run()
	defer l.Stop()

	// Give Run a moment to mark the loop started.
	waitFor(t, "the loop to start", func() bool {
		l.lock.Lock()
		defer l.lock.Unlock()
		return l.started
	})
	if err := l.Register(NewNotifier(), func() {}); err == nil {
		t.Error("register after start should have failed")
	}
}
