// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package md

import (
	log "github.com/golang/glog"

	"github.com/p1nky/sheepdog/internal/core"
	"github.com/p1nky/sheepdog/pkg/disk"
)

// DiskInfo describes one live disk for the admin surface.
type DiskInfo struct {
	Idx  int    `json:"idx"`
	Path string `json:"path"`
	Size uint64 `json:"size"`
	Used uint64 `json:"used"`
}

// Info reports every live disk: slot, path, total filesystem bytes, and the
// bytes held by live objects (computed by walking the path).
func (s *Store) Info() []DiskInfo {
	op := opm.Start("info")
	defer op.End()

	s.lock.RLock()
	defer s.lock.RUnlock()

	out := make([]DiskInfo, 0, len(s.disks))
	for i := range s.disks {
		_, total, err := disk.Space(s.disks[i].path)
		if err != nil {
			log.Errorf("get disk %s space failed: %s", s.disks[i].path, err)
			total = 0
		}
		used, ret := pathUsed(s.disks[i].path)
		if ret != core.NoError {
			used = 0
		}
		out = append(out, DiskInfo{
			Idx:  i,
			Path: s.disks[i].path,
			Size: total,
			Used: used,
		})
	}
	return out
}
