// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package sheep

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	log "github.com/golang/glog"

	"github.com/p1nky/sheepdog/internal/cluster"
)

var metricRecoveries = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "sheep",
	Name:      "recovery_kicks",
	Help:      "times the recovery orchestrator was kicked",
})

// recoveryKicker forwards kicks to the cluster recovery orchestrator. The
// orchestrator itself lives with the wire protocol; a single-host daemon only
// counts and logs the kick.
type recoveryKicker struct{}

// NewRecoveryKicker returns the daemon's recovery entry point.
func NewRecoveryKicker() *recoveryKicker {
	return &recoveryKicker{}
}

// StartRecovery implements md.Recoverer.
func (recoveryKicker) StartRecovery(cur, old *cluster.View) {
	metricRecoveries.Inc()
	log.Infof("recovery kicked, epoch %d, %d nodes", cur.Epoch, cur.NodeCount())
}
