// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package sheep

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	log "github.com/golang/glog"

	"github.com/p1nky/sheepdog/internal/work"
)

var metricWorkers = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "sheep",
	Name:      "workers",
	Help:      "live traced workers per queue",
}, []string{"queue"})

// workerTracer is the daemon's work.Tracer: it logs worker churn and keeps a
// per-queue gauge. Registration happens explicitly at startup rather than
// through package initializers, so a daemon that disables tracing pays
// nothing.
type workerTracer struct{}

// NewWorkerTracer returns the daemon tracer.
func NewWorkerTracer() work.Tracer {
	return workerTracer{}
}

// RegisterWorker implements work.Tracer.
func (workerTracer) RegisterWorker(queue string, id uint64) {
	metricWorkers.WithLabelValues(queue).Inc()
	log.V(1).Infof("trace worker %s/%d registered", queue, id)
}

// UnregisterWorker implements work.Tracer.
func (workerTracer) UnregisterWorker(queue string, id uint64) {
	metricWorkers.WithLabelValues(queue).Dec()
	log.V(1).Infof("trace worker %s/%d unregistered", queue, id)
}
