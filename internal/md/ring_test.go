// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Tests for the vdisk ring: hashing, weighting, lookup.

package md

import (
	"math/rand"
	"testing"

	"github.com/p1nky/sheepdog/internal/core"
)

// Pin the FNV-1a/64 parameters with a known vector; the placement of every
// object depends on them.
func TestFNV1a(t *testing.T) {
	if h := fnv1a(fnv1aInit, nil); h != fnv1aInit {
		t.Errorf("empty hash %#x, want the offset basis", h)
	}
	if h := fnv1aByte(fnv1aInit, 'a'); h != 0xaf63dc4c8601ec8c {
		t.Errorf("hash of 'a' is %#x", h)
	}
}

func testDisks(nr int, vdisks uint16) []Disk {
	paths := []string{"/d0", "/d1", "/d2", "/d3"}
	disks := make([]Disk, nr)
	for i := range disks {
		disks[i] = Disk{path: paths[i], nrVDisks: vdisks}
	}
	return disks
}

// Ring construction is a pure function of the disk array.
func TestRingDeterministic(t *testing.T) {
	a := disksToVDisks(testDisks(2, 128))
	b := disksToVDisks(testDisks(2, 128))

	if len(a) != 256 {
		t.Fatalf("ring has %d entries, want 256", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("rings differ at %d: %v vs %v", i, a[i], b[i])
		}
	}

	// Sorted ascending by id.
	for i := 1; i < len(a); i++ {
		if a[i].id < a[i-1].id {
			t.Fatalf("ring not sorted at %d", i)
		}
	}
}

// The lookup returns the lowest entry at or above the hash, wrapping to entry
// zero past the maximum.
func TestLookupWrap(t *testing.T) {
	vds := disksToVDisks(testDisks(3, 128))

	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		oid := core.OID(rnd.Uint64())
		id := oidHash(oid)
		vd := oidToVDisk(vds, oid)

		if id > vds[len(vds)-1].id {
			if vd != vds[0] {
				t.Fatalf("hash %#x past the maximum should wrap to entry 0", id)
			}
			continue
		}
		if vd.id < id {
			t.Fatalf("entry %#x below hash %#x", vd.id, id)
		}
		// No lower entry also satisfies the bound.
		for j := range vds {
			if vds[j].id >= id {
				if vds[j] != vd {
					t.Fatalf("lookup skipped entry %d for hash %#x", j, id)
				}
				break
			}
		}
	}
}

// Lookups land on disks proportionally to their vdisk counts.
func TestWeightFidelity(t *testing.T) {
	disks := []Disk{
		{path: "/d0", nrVDisks: 64},
		{path: "/d1", nrVDisks: 192},
	}
	vds := disksToVDisks(disks)

	const n = 100000
	hits := make([]int, 2)
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < n; i++ {
		vd := oidToVDisk(vds, core.OID(rnd.Uint64()))
		hits[vd.idx]++
	}

	// 256 hash points put about 2.7% of one-sigma noise on the split, so
	// leave room around the ideal 0.75.
	frac := float64(hits[1]) / n
	if frac < 0.67 || frac > 0.83 {
		t.Errorf("d1 with 3/4 of the vdisks received %.3f of the lookups", frac)
	}
}

// Free-space weighting: a disk's vdisk count scales with its share of the
// average.
func TestCalculateVDisks(t *testing.T) {
	const gib = 1 << 30

	s := &Store{disks: []Disk{
		{path: "/d0", space: 1 * gib},
		{path: "/d1", space: 3 * gib},
	}}
	s.calculateVDisks(4 * gib)
	if n := s.disks[0].nrVDisks; n < 63 || n > 65 {
		t.Errorf("1 GiB disk has %d vdisks, want 64", n)
	}
	if n := s.disks[1].nrVDisks; n < 191 || n > 193 {
		t.Errorf("3 GiB disk has %d vdisks, want 192", n)
	}

	s = &Store{disks: []Disk{
		{path: "/d0", space: 1 * gib},
		{path: "/d1", space: 1 * gib},
	}}
	s.calculateVDisks(2 * gib)
	for i := range s.disks {
		if n := s.disks[i].nrVDisks; n != 128 {
			t.Errorf("equal disk %d has %d vdisks, want 128", i, n)
		}
	}

	// A broken last disk reports zero space; everyone falls back to the
	// default weight instead of dividing by zero.
	s = &Store{disks: []Disk{{path: "/d0", space: 0}}}
	s.calculateVDisks(0)
	if n := s.disks[0].nrVDisks; n != defaultVDisks {
		t.Errorf("zero-space disk has %d vdisks, want %d", n, defaultVDisks)
	}
}
