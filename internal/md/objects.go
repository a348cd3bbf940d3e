// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package md

import (
	"os"
	"path/filepath"

	log "github.com/golang/glog"

	"github.com/p1nky/sheepdog/internal/core"
	"github.com/p1nky/sheepdog/pkg/disk"
)

// Exists reports whether the object is present in the working directory. A
// miss on the hash-correct path triggers a full scan of every disk: there is
// no epoch-like history to locate objects after multiple disk failures, so we
// simply iterate. A misplaced copy found by the scan is renamed onto the
// hash-correct disk on the way.
func (s *Store) Exists(oid core.OID) bool {
	op := opm.Start("exists")
	defer op.End()

	if disk.Access(filepath.Join(s.ObjectPath(oid), oid.String())) {
		return true
	}
	return s.scanAndRepair(oid, 0) == core.NoError
}

// StalePath returns the path of the prior-epoch snapshot of the object,
// scanning all disks when the hash-correct disk has no copy. epoch must be
// nonzero.
func (s *Store) StalePath(oid core.OID, epoch uint32) (string, core.Error) {
	op := opm.Start("stale_path")
	defer op.End()

	if epoch == 0 {
		log.Fatalf("stale lookup of %s without an epoch", oid)
	}

	path := filepath.Join(s.ObjectPath(oid), staleDir, oid.StaleName(epoch))
	if disk.Access(path) {
		return path, core.NoError
	}
	if s.scanAndRepair(oid, epoch) == core.NoError {
		// The scan moved the snapshot onto the hash-correct disk; resolve
		// again in case the ring changed underneath.
		return filepath.Join(s.ObjectPath(oid), staleDir, oid.StaleName(epoch)), core.NoError
	}
	return "", core.ErrNoObj
}

// scanAndRepair walks every disk looking for the object (epoch zero) or its
// stale snapshot, and renames the first hit onto the hash-correct disk. It
// takes the write lock: repair mutates the working directory, and racing
// repairs of the same object must not observe each other halfway.
func (s *Store) scanAndRepair(oid core.OID, epoch uint32) core.Error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for i := range s.disks {
		if s.checkAndMove(oid, epoch, s.disks[i].path) == core.NoError {
			return core.NoError
		}
	}
	return core.ErrNoObj
}

// checkAndMove renames the copy of oid under path onto the hash-correct disk.
// Call with the write lock held.
func (s *Store) checkAndMove(oid core.OID, epoch uint32, path string) core.Error {
	var oldp, newp string
	if epoch == 0 {
		oldp = filepath.Join(path, oid.String())
		newp = filepath.Join(s.objectPathNolock(oid), oid.String())
	} else {
		oldp = filepath.Join(path, staleDir, oid.StaleName(epoch))
		newp = filepath.Join(s.objectPathNolock(oid), staleDir, oid.StaleName(epoch))
	}

	if !disk.Access(oldp) {
		return core.ErrIO
	}
	if err := os.Rename(oldp, newp); err != nil {
		log.Errorf("old %s, new %s: %s", oldp, newp, err)
		return core.ErrIO
	}
	log.V(1).Infof("moved object from %s to %s", oldp, newp)
	return core.NoError
}
