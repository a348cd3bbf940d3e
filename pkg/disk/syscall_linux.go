// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Linux syscall related stuff goes here.

//go:build linux

package disk

import "syscall"

// Constants for syscalls.
const (
	// Mandatory namespace for xattr names.
	xattrNamespace = "user."

	// Error returned if the attribute was not found.
	ENOATTR = syscall.ENODATA

	sysGetxattr = syscall.SYS_GETXATTR
	sysSetxattr = syscall.SYS_SETXATTR
)

// statfs fills free and total bytes of the filesystem holding path.
func statfs(path string) (free, total uint64, err error) {
	var stat syscall.Statfs_t
	if err = syscall.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	return uint64(stat.Bsize) * stat.Bfree, uint64(stat.Bsize) * stat.Blocks, nil
}
