// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package md

import (
	"encoding/binary"
	"sort"

	"github.com/p1nky/sheepdog/internal/core"
)

// FNV-1a/64 parameters.
const (
	fnv1aInit  uint64 = 0xcbf29ce484222325
	fnv1aPrime uint64 = 0x100000001b3
)

// vdisk is one hash point on the ring; idx names the backing disk in the disk
// array at ring-build time.
type vdisk struct {
	id  uint64
	idx uint16
}

func fnv1aByte(h uint64, b byte) uint64 {
	h ^= uint64(b)
	h *= fnv1aPrime
	return h
}

func fnv1a(h uint64, p []byte) uint64 {
	for _, b := range p {
		h = fnv1aByte(h, b)
	}
	return h
}

// oidHash hashes the eight identifier bytes in little-endian order.
func oidHash(oid core.OID) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(oid))
	return fnv1a(fnv1aInit, b[:])
}

// disksToVDisks expands the disk array into a sorted ring. The id stream is
// part of the placement contract and must not change across releases: each
// disk chains one running hash across its points, folding in the 4-byte
// little-endian count of disks remaining after it, then the path bytes in
// reverse order, once per point.
func disksToVDisks(disks []Disk) []vdisk {
	vds := make([]vdisk, 0, len(disks)*defaultVDisks)
	for di := range disks {
		var remaining [4]byte
		binary.LittleEndian.PutUint32(remaining[:], uint32(len(disks)-1-di))
		path := disks[di].path

		h := fnv1aInit
		for i := 0; i < int(disks[di].nrVDisks); i++ {
			h = fnv1a(h, remaining[:])
			for j := len(path) - 1; j >= 0; j-- {
				h = fnv1aByte(h, path[j])
			}
			vds = append(vds, vdisk{id: h, idx: uint16(di)})
		}
	}
	sort.Slice(vds, func(i, j int) bool { return vds[i].id < vds[j].id })
	return vds
}

// oidToVDisk finds the lowest ring entry with id >= hash(oid), wrapping to
// entry zero past the maximum. The ring must not be empty.
func oidToVDisk(vds []vdisk, oid core.OID) vdisk {
	id := oidHash(oid)
	i := sort.Search(len(vds), func(i int) bool { return vds[i].id >= id })
	if i == len(vds) {
		i = 0
	}
	return vds[i]
}
