// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package disk

import "syscall"

// Space returns the free and total byte counts of the filesystem holding
// path.
func Space(path string) (free, total uint64, err error) {
	return statfs(path)
}

// Access reports whether path exists and is readable and writable by the
// calling process.
func Access(path string) bool {
	return syscall.Access(path, 0x6) == nil // R_OK|W_OK
}
