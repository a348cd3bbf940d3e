// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package md

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/golang/glog"

	"github.com/p1nky/sheepdog/internal/core"
)

// How many names to ask for at once from readdir.
const readdirChunkSize = 1000

// forEachObjectInPath invokes fn for every live object file directly under
// path. Dot-prefixed names and names that fail to parse as nonzero hex are
// skipped. Temporary objects are never reported; with cleanup set they are
// unlinked as they are encountered.
func forEachObjectInPath(path string, cleanup bool, fn func(core.OID, string) core.Error) core.Error {
	dir, err := os.Open(path)
	if err != nil {
		log.Errorf("failed to open %s: %s", path, err)
		return core.ErrIO
	}
	defer dir.Close()

	for {
		names, rerr := dir.Readdirnames(readdirChunkSize)
		for _, name := range names {
			if strings.HasPrefix(name, ".") {
				continue
			}

			if len(name) == 20 && name[16:] == ".tmp" {
				if _, err := core.ParseOID(name[:16]); err != nil {
					continue
				}
				if cleanup {
					p := filepath.Join(path, name)
					log.V(1).Infof("remove tmp object %s", p)
					os.Remove(p)
				}
				continue
			}

			oid, err := core.ParseOID(name)
			if err != nil {
				continue
			}
			if ret := fn(oid, path); ret != core.NoError {
				return ret
			}
		}
		if rerr == io.EOF {
			return core.NoError
		}
		if rerr != nil {
			log.Errorf("failed to read %s: %s", path, rerr)
			return core.ErrIO
		}
	}
}

// ForEachObject invokes fn for every live object in the working directory, in
// disk order, stopping at the first non-success status. With multi-disk
// disabled only the legacy path is iterated.
func (s *Store) ForEachObject(cleanup bool, fn func(core.OID, string) core.Error) core.Error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if !s.enabled {
		return forEachObjectInPath(s.objPath, cleanup, fn)
	}
	for i := range s.disks {
		if ret := forEachObjectInPath(s.disks[i].path, cleanup, fn); ret != core.NoError {
			return ret
		}
	}
	return core.NoError
}

// ForEachPath invokes fn for every storage path, stopping at the first
// non-success status.
func (s *Store) ForEachPath(fn func(path string) core.Error) core.Error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if !s.enabled {
		return fn(s.objPath)
	}
	for i := range s.disks {
		if ret := fn(s.disks[i].path); ret != core.NoError {
			return ret
		}
	}
	return core.NoError
}

// pathUsed sums the sizes of the live objects under path.
func pathUsed(path string) (uint64, core.Error) {
	var used uint64
	ret := forEachObjectInPath(path, false, func(oid core.OID, p string) core.Error {
		fi, err := os.Stat(filepath.Join(p, oid.String()))
		if err != nil {
			log.Errorf("failed to stat %s/%s: %s", p, oid, err)
			return core.ErrIO
		}
		used += uint64(fi.Size())
		return core.NoError
	})
	return used, ret
}
