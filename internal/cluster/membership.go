// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package cluster

import "sync"

// View is a snapshot of the cluster membership: the set of node addresses at a
// given epoch. The recovery orchestrator is handed the view that was current
// when a disk change happened.
type View struct {
	Epoch uint32
	Nodes []string
}

// NodeCount returns the number of nodes in the view.
func (v *View) NodeCount() int {
	if v == nil {
		return 0
	}
	return len(v.Nodes)
}

// Membership answers questions about the current cluster view. The real
// implementation lives in the cluster protocol layer; this package provides a
// static one for single-host daemons and tests.
type Membership interface {
	// View returns a snapshot of the current membership. Callers own the
	// returned value.
	View() *View

	// NodeCount returns the number of nodes in the current view. The work
	// queue engine consults this on every grow decision for DYNAMIC queues.
	NodeCount() int
}

// StaticMembership is a Membership with a fixed node list, updatable through
// SetNodes (configuration reload, tests).
type StaticMembership struct {
	lock  sync.Mutex
	epoch uint32
	nodes []string
}

// NewStaticMembership creates a membership fixed to the given node addresses.
func NewStaticMembership(nodes ...string) *StaticMembership {
	return &StaticMembership{epoch: 1, nodes: append([]string(nil), nodes...)}
}

// View returns a copy of the current view.
func (s *StaticMembership) View() *View {
	s.lock.Lock()
	defer s.lock.Unlock()
	return &View{Epoch: s.epoch, Nodes: append([]string(nil), s.nodes...)}
}

// NodeCount returns the current node count.
func (s *StaticMembership) NodeCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.nodes)
}

// SetNodes replaces the node list and bumps the epoch.
func (s *StaticMembership) SetNodes(nodes ...string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.epoch++
	s.nodes = append([]string(nil), nodes...)
}
