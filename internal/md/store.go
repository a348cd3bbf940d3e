// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// The multi-disk placement layer: an ordered set of local storage paths and a
// consistent-hash ring of virtual disks over them. One process-wide
// reader/writer lock guards the data plane; every writer rebuilds the ring
// before releasing.

package md

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	log "github.com/golang/glog"

	"github.com/p1nky/sheepdog/internal/cluster"
	"github.com/p1nky/sheepdog/internal/core"
	"github.com/p1nky/sheepdog/internal/server"
	"github.com/p1nky/sheepdog/internal/work"
	"github.com/p1nky/sheepdog/pkg/disk"
)

const (
	// Hash points contributed by a disk of average free space.
	defaultVDisks = 128

	// Cap on the disk array; bounds the ring at maxDisks * defaultVDisks
	// entries for an average-sized set.
	maxDisks = 64

	// Extended attribute on each storage path recording the live object
	// bytes observed at initialization ("user." namespace, 8 bytes LE).
	sizeAttr = "md.size"

	// Sub-directory of each storage path holding prior-epoch snapshots.
	staleDir = ".stale"

	defDirMode = 0755
)

var (
	opm = server.NewOpMetric("sheep_md", "op")

	metricSpace = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "md",
		Name:      "space",
		Help:      "free space per disk at last ring rebuild",
	}, []string{"disk"})
	metricDisks = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "md",
		Name:      "disks",
		Help:      "number of online disks",
	})
)

// Disk is one storage path. Mutated only under the store's write lock.
type Disk struct {
	path     string
	nrVDisks uint16
	space    uint64 // free bytes at last initSpace
}

// Recoverer is the kick entry point of the recovery orchestrator.
type Recoverer interface {
	StartRecovery(cur, old *cluster.View)
}

// Store is the multi-disk placement layer.
type Store struct {
	// Immutable after NewStore.
	objPath    string // legacy single-disk path, used while disabled
	wq         *work.Queue
	membership cluster.Membership
	recoverer  Recoverer

	lock       sync.RWMutex
	enabled    bool
	disks      []Disk
	vdisks     []vdisk // the ring, ascending by id
	totalSpace uint64
}

// NewStore creates the placement layer. With no mdPaths the store stays
// disabled and resolves every object to objPath. wq is the dedicated queue
// that runs disk eviction after an I/O error.
func NewStore(objPath string, mdPaths []string, wq *work.Queue, m cluster.Membership, r Recoverer) *Store {
	s := &Store{
		objPath:    objPath,
		wq:         wq,
		membership: m,
		recoverer:  r,
	}
	if len(mdPaths) == 0 {
		return s
	}

	s.lock.Lock()
	for _, p := range mdPaths {
		s.addDisk(p)
	}
	s.totalSpace = s.initSpace()
	s.lock.Unlock()
	return s
}

// Enabled reports whether multi-disk placement is active.
func (s *Store) Enabled() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.enabled
}

// TotalSpace returns the free-space total observed at the last ring rebuild.
func (s *Store) TotalSpace() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.totalSpace
}

func (s *Store) nrOnlineDisks() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.disks)
}

// ObjectPath resolves the storage path holding oid.
func (s *Store) ObjectPath(oid core.OID) string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if !s.enabled {
		return s.objPath
	}
	return s.objectPathNolock(oid)
}

// Call with the lock held (either side).
func (s *Store) objectPathNolock(oid core.OID) string {
	if len(s.vdisks) == 0 {
		// Every disk has been unplugged; fall back to the legacy path so
		// lookups fail there predictably.
		return s.objPath
	}
	vd := oidToVDisk(s.vdisks, oid)
	p := s.disks[vd.idx].path
	log.V(2).Infof("%d, %s", vd.idx, p)
	return p
}

// Call with the write lock held.
func (s *Store) diskIdx(path string) int {
	for i := range s.disks {
		if s.disks[i].path == path {
			return i
		}
	}
	return -1
}

// Call with the write lock held.
func (s *Store) addDisk(path string) {
	if s.diskIdx(path) != -1 {
		log.Errorf("duplicate path %s", path)
		return
	}
	if len(s.disks) >= maxDisks {
		log.Errorf("disk array full, not adding %s", path)
		return
	}
	if err := os.MkdirAll(path, defDirMode); err != nil {
		log.Errorf("can't mkdir for %s: %s", path, err)
		return
	}
	s.disks = append(s.disks, Disk{path: path})
	log.Infof("%s, nr %d", path, len(s.disks))
}

// Call with the write lock held.
func (s *Store) delDisk(path string) {
	idx := s.diskIdx(path)
	if idx < 0 {
		log.Errorf("invalid path %s", path)
		return
	}
	s.removeDisk(idx)
}

// Call with the write lock held.
func (s *Store) removeDisk(idx int) {
	log.Infof("%s removed from multi-disk array", s.disks[idx].path)
	s.disks = append(s.disks[:idx], s.disks[idx+1:]...)
}

// initSpace re-reads the free space of every disk, recomputes the vdisk
// weights, and rebuilds the ring. Disks whose paths fail initialization are
// dropped, except the last one: that slot is kept so lookups keep resolving
// to a broken path and callers see EIO. Returns the free-space total. Call
// with the write lock held.
func (s *Store) initSpace() uint64 {
	var total uint64

reinit:
	for {
		if len(s.disks) == 0 {
			// Drop the stale ring too, or lookups would index disks that
			// are gone; the legacy path takes over.
			s.vdisks = nil
			metricDisks.Set(0)
			metricSpace.Reset()
			return 0
		}
		total = 0
		for i := range s.disks {
			space, err := initDiskSpace(s.disks[i].path)
			if err != nil || space == 0 {
				if len(s.disks) == 1 {
					log.Errorf("keeping broken disk %s for error signalling: %v",
						s.disks[i].path, err)
					s.disks[0].space = 0
					total = 0
					break
				}
				log.Errorf("dropping broken disk %s: %v", s.disks[i].path, err)
				s.removeDisk(i)
				continue reinit
			}
			s.disks[i].space = space
			total += space
		}
		break
	}

	s.calculateVDisks(total)
	s.vdisks = disksToVDisks(s.disks)
	s.enabled = true

	metricDisks.Set(float64(len(s.disks)))
	metricSpace.Reset()
	for i := range s.disks {
		metricSpace.WithLabelValues(s.disks[i].path).Set(float64(s.disks[i].space))
	}
	return total
}

// calculateVDisks assigns each disk hash points proportional to its share of
// the free space. Call with the write lock held.
func (s *Store) calculateVDisks(total uint64) {
	avg := total / uint64(len(s.disks))
	for i := range s.disks {
		if avg == 0 {
			s.disks[i].nrVDisks = defaultVDisks
		} else {
			factor := float64(s.disks[i].space) / float64(avg)
			s.disks[i].nrVDisks = uint16(math.Round(defaultVDisks * factor))
		}
		log.V(1).Infof("%s has %d vdisks, free space %d",
			s.disks[i].path, s.disks[i].nrVDisks, s.disks[i].space)
	}
}

// initDiskSpace prepares one storage path and returns its free space.
func initDiskSpace(path string) (uint64, error) {
	if _, err := initPath(path); err != nil {
		return 0, err
	}
	free, _, err := disk.Space(path)
	if err != nil {
		log.Errorf("get disk %s space failed: %s", path, err)
		return 0, err
	}
	return free, nil
}

// initPath prepares one storage path: verifies xattr support, creates the
// .stale sub-area, and makes sure the size attribute is recorded. Returns the
// live object byte count recorded on the path. Any failure means the path is
// broken and the disk must be dropped.
func initPath(path string) (uint64, error) {
	if !disk.XattrSupported(path) {
		log.Infof("multi-disk support needs the xattr feature, %s", path)
		return 0, fmt.Errorf("no xattr support on %s", path)
	}

	stale := filepath.Join(path, staleDir)
	if err := os.Mkdir(stale, defDirMode); err != nil && !os.IsExist(err) {
		log.Errorf("can't mkdir for %s: %s", stale, err)
		return 0, err
	}

	v, err := disk.Getxattr(path, sizeAttr)
	if err == nil {
		if len(v) != 8 {
			return 0, fmt.Errorf("size attribute on %s has %d bytes", path, len(v))
		}
		return binary.LittleEndian.Uint64(v), nil
	}
	if !disk.IsNoAttr(err) {
		log.Errorf("%s: %s", path, err)
		return 0, err
	}

	// Attribute missing: scan the live objects and record their total size.
	size, ret := pathUsed(path)
	if ret != core.NoError {
		return 0, ret.Error()
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], size)
	if err := disk.Setxattr(path, sizeAttr, buf[:]); err != nil {
		log.Errorf("%s: %s", path, err)
		return 0, err
	}
	return size, nil
}

// Plug adds the comma-separated storage paths to the disk array.
func (s *Store) Plug(paths string) core.Error {
	return s.plugUnplug(paths, true)
}

// Unplug removes the comma-separated storage paths from the disk array.
func (s *Store) Unplug(paths string) core.Error {
	return s.plugUnplug(paths, false)
}

func (s *Store) plugUnplug(paths string, plug bool) core.Error {
	op := opm.Start("plug_unplug")
	defer op.End()

	s.lock.Lock()
	defer s.lock.Unlock()

	oldNr := len(s.disks)
	for _, p := range strings.Split(paths, ",") {
		if p == "" {
			continue
		}
		if plug {
			s.addDisk(p)
		} else {
			s.delDisk(p)
		}
	}

	// If no disks changed, bail out.
	if oldNr == len(s.disks) {
		return core.ErrUnknown
	}

	s.totalSpace = s.initSpace()
	// Kick recovery aggressively: the number of disks dropped inside
	// initSpace can happen to equal the number just added.
	if len(s.disks) > 0 {
		s.kickRecover()
	}
	return core.NoError
}
