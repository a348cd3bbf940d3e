// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Darwin (MacOS) syscall related stuff goes here.

//go:build darwin

package disk

import "syscall"

// Constants for syscalls.
const (
	// Don't need xattr namespace.
	xattrNamespace = ""

	// Error returned if the attribute was not found.
	ENOATTR = syscall.ENOATTR

	// The darwin calls take two trailing arguments (position, options); the
	// shared wrappers pass zero for both.
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
