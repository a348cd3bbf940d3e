// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

import (
	"fmt"
	"strconv"
)

// OID is the 64-bit opaque name of a stored object. An object file on disk is
// named by the 16 lowercase hex digits of its OID.
type OID uint64

// ZeroOID is not a valid object identifier; directory entries that parse to it
// are ignored.
const ZeroOID = OID(0)

// String returns the on-disk file name of the object.
func (o OID) String() string {
	return fmt.Sprintf("%016x", uint64(o))
}

// TmpName returns the name of the in-progress temporary file for the object.
func (o OID) TmpName() string {
	return o.String() + ".tmp"
}

// StaleName returns the name of the prior-epoch snapshot of the object, as
// found under a storage path's .stale sub-directory.
func (o OID) StaleName(epoch uint32) string {
	return fmt.Sprintf("%016x.%d", uint64(o), epoch)
}

// ParseOID parses the 16-hex-digit name of an object file back into an OID.
// Names of the wrong length, names that do not parse as hex, and names that
// parse to zero are rejected.
func ParseOID(name string) (OID, error) {
	if len(name) != 16 {
		return ZeroOID, fmt.Errorf("object name %q is not 16 digits", name)
	}
	v, err := strconv.ParseUint(name, 16, 64)
	if err != nil {
		return ZeroOID, fmt.Errorf("object name %q is not hex: %s", name, err)
	}
	if v == 0 {
		return ZeroOID, fmt.Errorf("object name %q parses to zero", name)
	}
	return OID(v), nil
}
