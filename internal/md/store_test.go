// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Tests for the multi-disk store against real directories.

package md

import (
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/p1nky/sheepdog/internal/cluster"
	"github.com/p1nky/sheepdog/internal/core"
	"github.com/p1nky/sheepdog/internal/event"
	"github.com/p1nky/sheepdog/internal/work"
	"github.com/p1nky/sheepdog/pkg/disk"
	test "github.com/p1nky/sheepdog/pkg/testutil"
)

func TestMain(m *testing.M) {
	test.TestMain(m)
}

type kickCounter struct {
	kicks int64
}

func (k *kickCounter) StartRecovery(cur, old *cluster.View) {
	atomic.AddInt64(&k.kicks, 1)
}

type storeEnv struct {
	store  *Store
	paths  []string
	loop   *event.Loop
	kicker *kickCounter
}

func (e *storeEnv) stop() {
	e.loop.Stop()
}

// newStoreEnv builds a store over nrDisks fresh directories, with a live
// completion loop behind the eviction queue. Skips the test when the
// filesystem has no user xattr support.
func newStoreEnv(t *testing.T, nrDisks int) *storeEnv {
	dir, err := ioutil.TempDir(test.TempDir(), "md_test")
	if err != nil {
		t.Fatalf("couldn't get a temp dir: %s", err)
	}
	if !disk.XattrSupported(dir) {
		t.Skip("filesystem has no user xattr support")
	}

	paths := make([]string, nrDisks)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("d%d", i))
	}

	m := cluster.NewStaticMembership("node0", "node1")
	d := work.NewDispatcher(m, work.NopTracer{})
	loop := event.NewLoop()
	if err := d.Register(loop); err != nil {
		t.Fatalf("couldn't register the dispatcher: %s", err)
	}
	go loop.Run()

	kicker := &kickCounter{}
	s := NewStore(filepath.Join(dir, "obj"), paths, d.NewOrderedQueue("md_recover"), m, kicker)
	return &storeEnv{store: s, paths: paths, loop: loop, kicker: kicker}
}

func writeObject(t *testing.T, path string, oid core.OID, size int) {
	if err := ioutil.WriteFile(filepath.Join(path, oid.String()), make([]byte, size), 0644); err != nil {
		t.Fatalf("couldn't write object: %s", err)
	}
}

// otherPath returns a configured path different from p.
func (e *storeEnv) otherPath(t *testing.T, p string) string {
	for _, q := range e.paths {
		if q != p {
			return q
		}
	}
	t.Fatalf("no path other than %s", p)
	return ""
}

func TestSingleDiskInit(t *testing.T) {
	e := newStoreEnv(t, 1)
	defer e.stop()
	s := e.store

	if !s.Enabled() {
		t.Fatal("store should be enabled")
	}

	// The path carries an 8-byte size attribute recording zero object bytes,
	// and the stale sub-area.
	v, err := disk.Getxattr(e.paths[0], sizeAttr)
	if err != nil || len(v) != 8 {
		t.Fatalf("size attribute missing: %v, %s", v, err)
	}
	if size := binary.LittleEndian.Uint64(v); size != 0 {
		t.Errorf("empty disk recorded %d object bytes", size)
	}
	if fi, err := os.Stat(filepath.Join(e.paths[0], staleDir)); err != nil || !fi.IsDir() {
		t.Errorf("stale area missing: %s", err)
	}

	s.lock.RLock()
	defer s.lock.RUnlock()
	if n := s.disks[0].nrVDisks; n != 128 {
		t.Errorf("single disk has %d vdisks, want 128", n)
	}
	if n := len(s.vdisks); n != 128 {
		t.Errorf("ring has %d entries, want 128", n)
	}
}

func TestInitRecordsExistingObjects(t *testing.T) {
	e := newStoreEnv(t, 1)
	defer e.stop()

	// Seed a second disk directory with a live object and an attribute-less
	// state, then plug it: init must record the observed bytes.
	p := filepath.Join(filepath.Dir(e.paths[0]), "seeded")
	if err := os.Mkdir(p, 0755); err != nil {
		t.Fatalf("mkdir: %s", err)
	}
	writeObject(t, p, core.OID(0x1234), 5)

	if ret := e.store.Plug(p); ret != core.NoError {
		t.Fatalf("plug failed: %s", ret)
	}
	v, err := disk.Getxattr(p, sizeAttr)
	if err != nil || len(v) != 8 {
		t.Fatalf("size attribute missing: %v, %s", v, err)
	}
	if size := binary.LittleEndian.Uint64(v); size != 5 {
		t.Errorf("seeded disk recorded %d object bytes, want 5", size)
	}
}

func TestPlacementDeterministic(t *testing.T) {
	e := newStoreEnv(t, 2)
	defer e.stop()

	// Same configuration on a second store: byte-identical placement.
	rebuilt := NewStore("", e.paths, nil, cluster.NewStaticMembership("x"), &kickCounter{})

	for i := 0; i < 200; i++ {
		oid := core.OID(0x8000000000000000 + uint64(i)*0x1234567)
		p := e.store.ObjectPath(oid)
		if p != e.store.ObjectPath(oid) {
			t.Fatalf("lookup of %s is unstable", oid)
		}
		if q := rebuilt.ObjectPath(oid); q != p {
			t.Fatalf("rebuilt store placed %s at %s, original at %s", oid, q, p)
		}
		found := false
		for _, root := range e.paths {
			found = found || root == p
		}
		if !found {
			t.Fatalf("object %s placed outside the disk set: %s", oid, p)
		}
	}
}

func TestExistsAndRepair(t *testing.T) {
	e := newStoreEnv(t, 2)
	defer e.stop()
	s := e.store

	oid := core.OID(0xabcdef01)
	if s.Exists(oid) {
		t.Fatal("object should not exist yet")
	}

	canonical := s.ObjectPath(oid)
	writeObject(t, canonical, oid, 3)
	if !s.Exists(oid) {
		t.Fatal("object at its hash-correct path should exist")
	}

	// Misplace it: move the only copy to the other disk.
	other := e.otherPath(t, canonical)
	if err := os.Rename(filepath.Join(canonical, oid.String()),
		filepath.Join(other, oid.String())); err != nil {
		t.Fatalf("couldn't misplace the object: %s", err)
	}

	// The scan finds it and repairs the placement.
	if !s.Exists(oid) {
		t.Fatal("misplaced object should be found by the scan")
	}
	if _, err := os.Stat(filepath.Join(canonical, oid.String())); err != nil {
		t.Errorf("object was not moved back to the hash-correct disk: %s", err)
	}
	if _, err := os.Stat(filepath.Join(other, oid.String())); !os.IsNotExist(err) {
		t.Errorf("misplaced copy still present: %v", err)
	}
}

func TestStalePath(t *testing.T) {
	e := newStoreEnv(t, 2)
	defer e.stop()
	s := e.store

	oid := core.OID(0x55aa55aa)
	const epoch = 3

	if _, ret := s.StalePath(oid, epoch); ret != core.ErrNoObj {
		t.Fatalf("missing stale copy should report ErrNoObj, got %s", ret)
	}

	// Drop the snapshot under the wrong disk's stale area.
	canonical := s.ObjectPath(oid)
	other := e.otherPath(t, canonical)
	name := oid.StaleName(epoch)
	if err := ioutil.WriteFile(filepath.Join(other, staleDir, name), []byte("x"), 0644); err != nil {
		t.Fatalf("couldn't write the stale copy: %s", err)
	}

	p, ret := s.StalePath(oid, epoch)
	if ret != core.NoError {
		t.Fatalf("stale lookup failed: %s", ret)
	}
	want := filepath.Join(canonical, staleDir, name)
	if p != want {
		t.Errorf("stale path %s, want %s", p, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("stale copy was not repaired onto the hash-correct disk: %s", err)
	}
}

func waitForDisks(t *testing.T, s *Store, nr int) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.nrOnlineDisks() == nr {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("store stuck at %d disks, want %d", s.nrOnlineDisks(), nr)
}

func TestHandleEIOEvictsDisk(t *testing.T) {
	e := newStoreEnv(t, 2)
	defer e.stop()
	s := e.store

	victim := e.paths[1]
	if ret := s.HandleEIO(victim); ret != core.ErrNetwork {
		t.Fatalf("HandleEIO returned %s, want the retry result", ret)
	}

	// Eviction runs asynchronously on the completion thread.
	waitForDisks(t, s, 1)

	info := s.Info()
	if len(info) != 1 || info[0].Path != e.paths[0] {
		t.Fatalf("unexpected disks after eviction: %+v", info)
	}

	// Everything now routes to the surviving disk.
	for i := 0; i < 100; i++ {
		if p := s.ObjectPath(core.OID(uint64(i) + 1)); p != e.paths[0] {
			t.Fatalf("oid %d still routed to %s", i, p)
		}
	}
	if atomic.LoadInt64(&e.kicker.kicks) == 0 {
		t.Error("recovery was never kicked")
	}

	// A duplicate report for the evicted path: the survivor is the last disk
	// now, so the error surfaces directly.
	if ret := s.HandleEIO(victim); ret != core.ErrIO {
		t.Errorf("duplicate EIO with one disk left returned %s, want EIO", ret)
	}
}

func TestHandleEIOLastDisk(t *testing.T) {
	e := newStoreEnv(t, 1)
	defer e.stop()
	s := e.store

	if ret := s.HandleEIO(e.paths[0]); ret != core.ErrIO {
		t.Fatalf("EIO on the last disk returned %s, want EIO", ret)
	}
	if nr := s.nrOnlineDisks(); nr != 1 {
		t.Errorf("last disk was removed, %d online", nr)
	}
}

func TestDisabledStore(t *testing.T) {
	dir, err := ioutil.TempDir(test.TempDir(), "md_test")
	if err != nil {
		t.Fatalf("couldn't get a temp dir: %s", err)
	}
	obj := filepath.Join(dir, "obj")
	if err := os.Mkdir(obj, 0755); err != nil {
		t.Fatalf("mkdir: %s", err)
	}

	s := NewStore(obj, nil, nil, cluster.NewStaticMembership("x"), &kickCounter{})
	if s.Enabled() {
		t.Fatal("store with no md paths should be disabled")
	}
	if p := s.ObjectPath(core.OID(42)); p != obj {
		t.Errorf("disabled store resolved to %s, want the legacy path", p)
	}
	if ret := s.HandleEIO(obj); ret != core.ErrIO {
		t.Errorf("disabled store returned %s for EIO, want EIO", ret)
	}

	// Iteration covers the legacy path only.
	oid := core.OID(0x77)
	writeObject(t, obj, oid, 1)
	var seen []core.OID
	ret := s.ForEachObject(false, func(o core.OID, p string) core.Error {
		seen = append(seen, o)
		return core.NoError
	})
	if ret != core.NoError || len(seen) != 1 || seen[0] != oid {
		t.Errorf("legacy iteration saw %v (%s)", seen, ret)
	}
}

func TestPlugUnplug(t *testing.T) {
	e := newStoreEnv(t, 1)
	defer e.stop()
	s := e.store

	// Plugging a present path changes nothing.
	if ret := s.Plug(e.paths[0]); ret != core.ErrUnknown {
		t.Fatalf("no-op plug returned %s, want unknown", ret)
	}

	extra := filepath.Join(filepath.Dir(e.paths[0]), "d9")
	if ret := s.Plug(extra); ret != core.NoError {
		t.Fatalf("plug failed: %s", ret)
	}
	if nr := s.nrOnlineDisks(); nr != 2 {
		t.Fatalf("%d disks after plug, want 2", nr)
	}
	if atomic.LoadInt64(&e.kicker.kicks) == 0 {
		t.Error("plug did not kick recovery")
	}

	if ret := s.Unplug(extra); ret != core.NoError {
		t.Fatalf("unplug failed: %s", ret)
	}
	if nr := s.nrOnlineDisks(); nr != 1 {
		t.Fatalf("%d disks after unplug, want 1", nr)
	}
	if ret := s.Unplug(extra); ret != core.ErrUnknown {
		t.Errorf("unplug of a missing path returned %s, want unknown", ret)
	}

	// Unplugging the last disk leaves an empty ring; lookups fall back to
	// the legacy path instead of touching removed slots.
	if ret := s.Unplug(e.paths[0]); ret != core.NoError {
		t.Fatalf("unplug of the last disk failed: %s", ret)
	}
	if nr := s.nrOnlineDisks(); nr != 0 {
		t.Fatalf("%d disks after unplugging everything", nr)
	}
	legacy := filepath.Join(filepath.Dir(e.paths[0]), "obj")
	if p := s.ObjectPath(core.OID(1)); p != legacy {
		t.Errorf("empty store resolved to %s, want the legacy path", p)
	}
}

func TestForEachObjectCleanup(t *testing.T) {
	e := newStoreEnv(t, 2)
	defer e.stop()
	s := e.store

	live := core.OID(0x1001)
	tmp := core.OID(0x2002)
	root := e.paths[0]
	writeObject(t, root, live, 2)
	if err := ioutil.WriteFile(filepath.Join(root, tmp.TmpName()), []byte("x"), 0644); err != nil {
		t.Fatalf("couldn't write the tmp object: %s", err)
	}
	for _, junk := range []string{".hidden", "README", "0000000000000000"} {
		if err := ioutil.WriteFile(filepath.Join(root, junk), nil, 0644); err != nil {
			t.Fatalf("couldn't write %s: %s", junk, err)
		}
	}

	var seen []core.OID
	ret := s.ForEachObject(true, func(o core.OID, p string) core.Error {
		seen = append(seen, o)
		return core.NoError
	})
	if ret != core.NoError {
		t.Fatalf("iteration failed: %s", ret)
	}
	if len(seen) != 1 || seen[0] != live {
		t.Errorf("iteration saw %v, want only the live object", seen)
	}
	if _, err := os.Stat(filepath.Join(root, tmp.TmpName())); !os.IsNotExist(err) {
		t.Errorf("tmp object survived cleanup: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "README")); err != nil {
		t.Errorf("unknown files must be left alone: %s", err)
	}
}

func TestInfo(t *testing.T) {
	e := newStoreEnv(t, 1)
	defer e.stop()
	s := e.store

	writeObject(t, e.paths[0], core.OID(0x3003), 7)

	info := s.Info()
	if len(info) != 1 {
		t.Fatalf("info reported %d disks", len(info))
	}
	if info[0].Idx != 0 || info[0].Path != e.paths[0] {
		t.Errorf("bad identity in %+v", info[0])
	}
	if info[0].Used != 7 {
		t.Errorf("used %d bytes, want 7", info[0].Used)
	}
	if info[0].Size == 0 {
		t.Error("total size should not be zero")
	}
}
