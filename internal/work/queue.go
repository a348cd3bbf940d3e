// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package work

import (
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	log "github.com/golang/glog"
)

// The protection period from shrinking a work queue. Without it workers are
// created and retired on every load swing, which measurably hurts throughput
// under bursty submission.
const protectionPeriod = 1000 // ms

var (
	metricThreads = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "work",
		Name:      "threads",
		Help:      "current worker count per queue",
	}, []string{"queue"})
	metricPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "work",
		Name:      "pending",
		Help:      "pending items per queue",
	}, []string{"queue"})
	metricDone = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "work",
		Name:      "completed",
		Help:      "completed items per queue",
	}, []string{"queue"})
)

// A Queue runs submitted Work items on an elastic set of worker goroutines.
// Create queues through Dispatcher.NewQueue.
type Queue struct {
	name string
	tc   ThreadControl
	d    *Dispatcher

	// Guards nrThreads, nrPending, nrRunning, pending, and the protection
	// timestamp. Workers sleep on pendingCond while holding pendingLock.
	pendingLock     sync.Mutex
	pendingCond     *sync.Cond
	nrThreads       int
	nrPending       int
	nrRunning       int
	endOfProtection int64 // ms since epoch
	pending         []*Work

	// Guards finished only. Workers append here; the completion thread
	// swaps the list out.
	finishedLock sync.Mutex
	finished     []*Work

	// Serializes worker creation against the newborn worker's entry
	// barrier: the creator holds it across spawning so a worker cannot
	// observe a partially grown queue.
	startupLock sync.Mutex

	nextWorker uint64 // touched only under pendingLock or at creation
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

func msecNow() int64 {
	return time.Now().UnixMilli()
}

// roof returns the maximum worker count this queue's policy allows right now.
func (q *Queue) roof() int {
	switch q.tc {
	case Ordered:
		return 1
	case Dynamic:
		// Rule of thumb carried over from the C implementation: twice the
		// node count.
		return 2 * q.d.membership.NodeCount()
	case Unlimited:
		return math.MaxInt
	}
	log.Fatalf("invalid thread control %d on queue %s", int(q.tc), q.name)
	return 0
}

// needGrow reports whether the queue is under-provisioned and the roof still
// permits doubling. Arms the shrink protection window when it fires. Call with
// pendingLock held.
func (q *Queue) needGrow() bool {
	if q.nrThreads < q.nrPending+q.nrRunning && q.nrThreads*2 <= q.roof() {
		q.endOfProtection = msecNow() + protectionPeriod
		return true
	}
	return false
}

// needShrink reports whether at least half of the workers are idle and the
// protection window has expired. A failing load half re-arms the window; an
// unexpired window alone leaves it as it is. Call with pendingLock held.
func (q *Queue) needShrink() bool {
	if q.nrPending+q.nrRunning <= q.nrThreads/2 {
		// Cannot shrink during the protection period.
		if q.endOfProtection <= msecNow() {
			return true
		}
	} else {
		q.endOfProtection = msecNow() + protectionPeriod
	}
	return false
}

// createWorkers spawns workers until the queue has target of them. Called with
// pendingLock held on the grow path; NewQueue calls it before the queue is
// shared.
func (q *Queue) createWorkers(target int) {
	q.startupLock.Lock()
	for q.nrThreads < target {
		id := q.nextWorker
		q.nextWorker++
		q.d.tracer.RegisterWorker(q.name, id)
		go q.worker(id)
		q.nrThreads++
		log.V(1).Infof("create worker %s/%d, %d threads", q.name, id, q.nrThreads)
	}
	metricThreads.WithLabelValues(q.name).Set(float64(q.nrThreads))
	q.startupLock.Unlock()
}

// QueueWork submits w. Submission never fails; ownership of w passes to the
// queue until its Done step runs on the completion thread.
func (q *Queue) QueueWork(w *Work) {
	q.pendingLock.Lock()
	q.nrPending++

	if q.needGrow() {
		// Double the worker pool.
		q.createWorkers(q.nrThreads * 2)
	}

	q.pending = append(q.pending, w)
	metricPending.WithLabelValues(q.name).Set(float64(q.nrPending))
	q.pendingLock.Unlock()

	q.pendingCond.Signal()
}

// worker is the main loop of one worker goroutine.
func (q *Queue) worker(id uint64) {
	// Entry barrier: wait for the creator to finish growing the queue.
	q.startupLock.Lock()
	q.startupLock.Unlock()

	q.pendingLock.Lock()
	q.nrRunning++
	q.pendingLock.Unlock()

	for {
		q.pendingLock.Lock()
		if q.needShrink() {
			q.nrRunning--
			q.nrThreads--
			q.d.tracer.UnregisterWorker(q.name, id)
			metricThreads.WithLabelValues(q.name).Set(float64(q.nrThreads))
			nr := q.nrThreads
			q.pendingLock.Unlock()
			log.V(1).Infof("destroy worker %s/%d, %d threads", q.name, id, nr)
			return
		}

		for len(q.pending) == 0 {
			q.nrRunning--
			q.pendingCond.Wait()
			q.nrRunning++
		}

		q.nrPending--
		w := q.pending[0]
		q.pending = q.pending[1:]
		metricPending.WithLabelValues(q.name).Set(float64(q.nrPending))
		q.pendingLock.Unlock()

		// Never run user code with a queue lock held.
		if w.Fn != nil {
			w.Fn()
		}

		q.finishedLock.Lock()
		q.finished = append(q.finished, w)
		q.finishedLock.Unlock()

		q.d.notifier.Notify()
	}
}

// stats returns a snapshot of the queue counters.
func (q *Queue) stats() QueueStats {
	q.pendingLock.Lock()
	defer q.pendingLock.Unlock()
	return QueueStats{
		Name:    q.name,
		Policy:  q.tc.String(),
		Threads: q.nrThreads,
		Pending: q.nrPending,
		Running: q.nrRunning,
	}
}

// QueueStats is a point-in-time view of one queue, for status pages.
type QueueStats struct {
	Name    string `json:"name"`
	Policy  string `json:"policy"`
	Threads int    `json:"threads"`
	Pending int    `json:"pending"`
	Running int    `json:"running"`
}
