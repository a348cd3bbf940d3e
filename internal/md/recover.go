// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package md

import (
	log "github.com/golang/glog"

	"github.com/p1nky/sheepdog/internal/core"
	"github.com/p1nky/sheepdog/internal/work"
)

// HandleEIO schedules eviction of the disk behind faultPath and returns
// ErrNetwork so the caller's client-side logic retries while recovery runs
// asynchronously. With multi-disk disabled, or with at most one disk online,
// nothing can be evicted and the EIO surfaces directly.
func (s *Store) HandleEIO(faultPath string) core.Error {
	op := opm.Start("handle_eio")
	defer op.End()

	if !s.Enabled() {
		return core.ErrIO
	}
	if s.nrOnlineDisks() <= 1 {
		return core.ErrIO
	}

	path := faultPath
	s.wq.QueueWork(&work.Work{
		Done: func() { s.doRecover(path) },
	})

	// Fool the requester into retrying.
	return core.ErrNetwork
}

// doRecover runs on the completion thread: remove the faulty disk, recompute
// the ring, and kick the recovery orchestrator.
func (s *Store) doRecover(path string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	idx := s.diskIdx(path)
	if idx < 0 {
		// Just ignore the duplicate EIO of the same path.
		return
	}
	if len(s.disks) == 1 {
		// The slot stays; the next lookup keeps resolving here and the
		// caller sees EIO.
		log.Errorf("disk %s is the last one online, keeping it", path)
		return
	}

	s.removeDisk(idx)
	s.totalSpace = s.initSpace()
	if len(s.disks) > 0 {
		s.kickRecover()
	}
}

// kickRecover hands the current view to the recovery orchestrator. Call with
// the write lock held.
func (s *Store) kickRecover() {
	v := s.membership.View()
	s.recoverer.StartRecovery(v, v)
}
