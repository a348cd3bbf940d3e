// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package work

import (
	"sync"

	log "github.com/golang/glog"

	"github.com/p1nky/sheepdog/internal/cluster"
	"github.com/p1nky/sheepdog/internal/event"
)

// Dispatcher owns the process-wide completion channel shared by every queue:
// a single readiness notifier registered with the host event loop. Workers
// signal it after moving an item to their queue's finished list; the loop's
// goroutine then drains every queue and runs the Done steps, so all Done
// callbacks in the process are serialized on that one thread.
type Dispatcher struct {
	notifier   *event.Notifier
	membership cluster.Membership
	tracer     Tracer

	// Guards queues against concurrent NewQueue during dispatch.
	lock   sync.Mutex
	queues []*Queue
}

// NewDispatcher creates a dispatcher. The membership collaborator feeds the
// DYNAMIC roof; pass a NopTracer if worker tracing is disabled.
func NewDispatcher(m cluster.Membership, t Tracer) *Dispatcher {
	if t == nil {
		t = NopTracer{}
	}
	return &Dispatcher{
		notifier:   event.NewNotifier(),
		membership: m,
		tracer:     t,
	}
}

// Register hooks the completion channel into the host event loop. Call once
// before the loop runs.
func (d *Dispatcher) Register(loop *event.Loop) error {
	return loop.Register(d.notifier, d.dispatch)
}

// NewQueue creates a named queue under the given thread-control policy and
// spawns its initial worker.
func (d *Dispatcher) NewQueue(name string, tc ThreadControl) *Queue {
	q := &Queue{name: name, tc: tc, d: d}
	q.pendingCond = sync.NewCond(&q.pendingLock)
	q.createWorkers(1)

	d.lock.Lock()
	d.queues = append(d.queues, q)
	d.lock.Unlock()

	log.Infof("work queue %s created, policy %s", name, tc)
	return q
}

// NewOrderedQueue creates a strictly serial queue.
func (d *Dispatcher) NewOrderedQueue(name string) *Queue {
	return d.NewQueue(name, Ordered)
}

// dispatch runs on the completion thread whenever the notifier is readable:
// for every live queue, swap out its finished list and invoke each item's
// Done in FIFO order.
func (d *Dispatcher) dispatch() {
	d.lock.Lock()
	queues := append([]*Queue(nil), d.queues...)
	d.lock.Unlock()

	for _, q := range queues {
		q.finishedLock.Lock()
		list := q.finished
		q.finished = nil
		q.finishedLock.Unlock()

		for _, w := range list {
			if w.Done != nil {
				w.Done()
			}
			metricDone.WithLabelValues(q.name).Inc()
		}
	}
}

// Stats returns a snapshot of every queue, for status pages.
func (d *Dispatcher) Stats() []QueueStats {
	d.lock.Lock()
	queues := append([]*Queue(nil), d.queues...)
	d.lock.Unlock()

	out := make([]QueueStats, 0, len(queues))
	for _, q := range queues {
		out = append(out, q.stats())
	}
	return out
}
