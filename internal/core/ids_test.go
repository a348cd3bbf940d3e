// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

import "testing"

func TestOIDString(t *testing.T) {
	if s := OID(0xdeadbeef).String(); s != "00000000deadbeef" {
		t.Errorf("bad oid name: %q", s)
	}
	if s := OID(1).TmpName(); s != "0000000000000001.tmp" {
		t.Errorf("bad tmp name: %q", s)
	}
	if s := OID(0xab).StaleName(7); s != "00000000000000ab.7" {
		t.Errorf("bad stale name: %q", s)
	}
}

func TestParseOID(t *testing.T) {
	good := map[string]OID{
		"00000000deadbeef": 0xdeadbeef,
		"ffffffffffffffff": 0xffffffffffffffff,
		"0000000000000001": 1,
	}
	for name, want := range good {
		oid, err := ParseOID(name)
		if err != nil || oid != want {
			t.Errorf("ParseOID(%q) = %v, %v; want %v", name, oid, err, want)
		}
	}

	bad := []string{
		"",
		"0000000000000000",     // zero
		"deadbeef",             // too short
		"00000000deadbeef.tmp", // too long
		"zzzzzzzzzzzzzzzz",     // not hex
		".stale",
	}
	for _, name := range bad {
		if _, err := ParseOID(name); err == nil {
			t.Errorf("ParseOID(%q) should have failed", name)
		}
	}

	// Round trip.
	for _, oid := range []OID{1, 0x123456789abcdef0, 1 << 63} {
		got, err := ParseOID(oid.String())
		if err != nil || got != oid {
			t.Errorf("round trip of %v failed: %v, %v", oid, got, err)
		}
	}
}
