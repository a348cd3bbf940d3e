// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package work

import log "github.com/golang/glog"

// Work is one item submitted to a queue. Fn runs on some worker goroutine of
// the queue; Done runs afterwards on the process's single completion thread.
// Ownership passes to the queue at QueueWork and back to the completion thread
// when Done is invoked.
type Work struct {
	// Fn is the off-thread step. May be nil.
	Fn func()

	// Done is the completion step, invoked exactly once after Fn returns.
	Done func()
}

// ThreadControl selects the thread-budget policy of a queue.
type ThreadControl int

const (
	// Ordered queues run at most one worker; items execute strictly
	// serially in submission order.
	Ordered = ThreadControl(iota)

	// Dynamic queues grow up to twice the current cluster node count.
	Dynamic

	// Unlimited queues grow without bound. Unbounded growth is what keeps
	// the daemon from deadlocking when every worker of a bounded queue
	// sleeps waiting on responses that need yet another worker to produce.
	Unlimited
)

// String returns the policy name.
func (tc ThreadControl) String() string {
	switch tc {
	case Ordered:
		return "ordered"
	case Dynamic:
		return "dynamic"
	case Unlimited:
		return "unlimited"
	}
	log.Fatalf("invalid thread control %d", int(tc))
	return ""
}

// Tracer is told about every worker a queue creates or retires, before the
// worker runs its first item and after it runs its last. Wire a real
// implementation at startup; the zero Tracer traces nothing.
type Tracer interface {
	RegisterWorker(queue string, id uint64)
	UnregisterWorker(queue string, id uint64)
}

// NopTracer is the Tracer used when tracing is disabled.
type NopTracer struct{}

// RegisterWorker does nothing.
func (NopTracer) RegisterWorker(queue string, id uint64) {}

// UnregisterWorker does nothing.
func (NopTracer) UnregisterWorker(queue string, id uint64) {}
