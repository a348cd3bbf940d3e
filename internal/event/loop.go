// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// A minimal readiness event loop. Components hand the loop a Notifier and a
// callback; the loop runs every callback on its single goroutine, so callbacks
// for different sources never overlap.

package event

import (
	"errors"
	"sync"
	"sync/atomic"

	log "github.com/golang/glog"
)

// Notifier is a semaphore-mode readiness counter, the moral equivalent of a
// nonblocking eventfd. Notify never blocks and may be called from any
// goroutine; consecutive signals coalesce into a single wakeup. The loop
// drains the counter once per wakeup before invoking the callback.
type Notifier struct {
	count uint64 // atomic

	// Set by Loop.Register.
	reg *registration
}

// NewNotifier creates an unregistered Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Notify increments the readiness counter and wakes the owning loop. Signals
// before registration are not lost; they are delivered on the first wakeup
// after Register.
func (n *Notifier) Notify() {
	atomic.AddUint64(&n.count, 1)
	if r := n.reg; r != nil {
		r.arm()
	}
}

// drain reads and resets the counter, like a read from a semaphore eventfd.
func (n *Notifier) drain() uint64 {
	return atomic.SwapUint64(&n.count, 0)
}

type registration struct {
	n     *Notifier
	cb    func()
	loop  *Loop
	armed int32 // atomic; 1 while a wakeup is in flight
}

// arm enqueues a wakeup unless one is already pending.
func (r *registration) arm() {
	if atomic.CompareAndSwapInt32(&r.armed, 0, 1) {
		r.loop.wake <- r
	}
}

// Loop dispatches readiness callbacks on a single goroutine.
type Loop struct {
	wake chan *registration
	stop chan struct{}

	lock    sync.Mutex
	regs    []*registration
	started bool
}

// NewLoop creates an event loop. Register all sources, then call Run.
func NewLoop() *Loop {
	return &Loop{
		// One slot per registration is enough because a registration has at
		// most one wakeup in flight; leave headroom for late registrations.
		wake: make(chan *registration, 64),
		stop: make(chan struct{}),
	}
}

// Register attaches a callback to a notifier. Registering after Run has been
// called, or registering the same notifier twice, is an error.
func (l *Loop) Register(n *Notifier, cb func()) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.started {
		return errors.New("event: register after loop start")
	}
	if n.reg != nil {
		return errors.New("event: notifier registered twice")
	}
	r := &registration{n: n, cb: cb, loop: l}
	n.reg = r
	l.regs = append(l.regs, r)
	return nil
}

// Run dispatches callbacks until Stop is called. It occupies the calling
// goroutine; that goroutine is the process's completion thread.
func (l *Loop) Run() {
	l.lock.Lock()
	l.started = true
	regs := l.regs
	l.lock.Unlock()

	// Deliver signals that arrived before the loop started.
	for _, r := range regs {
		if atomic.LoadUint64(&r.n.count) > 0 {
			r.arm()
		}
	}

	for {
		select {
		case r := <-l.wake:
			// Disarm before draining so that a Notify racing with the
			// callback re-arms instead of being swallowed.
			atomic.StoreInt32(&r.armed, 0)
			if r.n.drain() == 0 {
				continue
			}
			r.cb()
		case <-l.stop:
			log.V(1).Infof("event loop stopped")
			return
		}
	}
}

// Stop terminates Run. Pending wakeups are dropped.
func (l *Loop) Stop() {
	close(l.stop)
}
