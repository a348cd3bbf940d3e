// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// This file contains mechanism to manipulate extended attributes on paths.

package disk

import (
	"fmt"
	"syscall"
	"unsafe"
)

//
// XattrError type.
//

// XattrError records an error and the operation, path and attribute name that
// caused it.
type XattrError struct {
	Op   string // What is the operation?
	Path string // What is the path?
	Name string // What is the name of the attribute?
	Err  error  // What is the error?
}

// Error implements error.
func (x *XattrError) Error() string {
	return fmt.Sprintf("xattr error, op=%s, path=%s, name=%s, error=%s", x.Op, x.Path, x.Name, x.Err)
}

func newXattrError(op, path, name string, err error) *XattrError {
	return &XattrError{
		Op:   op,
		Path: path,
		Name: name,
		Err:  err,
	}
}

// IsNoAttr reports whether err means the attribute simply was not there.
func IsNoAttr(err error) bool {
	x, ok := err.(*XattrError)
	return ok && x.Err == ENOATTR
}

// IsNotSupported reports whether err means the filesystem has no xattr
// support at all.
func IsNotSupported(err error) bool {
	x, ok := err.(*XattrError)
	return ok && x.Err == syscall.ENOTSUP
}

// Getxattr gets an extended attribute of the file or directory at path.
func Getxattr(path, name string) ([]byte, error) {
	// We will first try a small-sized buffer.
	xname := xattrNamespace + name
	size := 8
	value := make([]byte, size)
	size, err := getxattr(path, xname, value, size)
	if nil == err {
		return value[:size], nil
	}

	// Return the error if it's not complaining about the buffer size.
	if syscall.ERANGE != err {
		return nil, newXattrError("getxattr", path, name, err)
	}

	// The buffer was too small. Ask for the proper size directly; with a nil
	// buffer getxattr returns the current size of the named attribute.
	size, err = getxattr(path, xname, nil, 0)
	if nil != err {
		return nil, newXattrError("getxattr", path, name, err)
	}
	if size <= 0 {
		return nil, newXattrError("getxattr", path, name, fmt.Errorf("size cannot be non-positive"))
	}
	value = make([]byte, size)
	if size, err = getxattr(path, xname, value, size); nil != err {
		return nil, newXattrError("getxattr", path, name, err)
	} else if size != len(value) {
		// Sanity check.
		return nil, newXattrError("getxattr", path, name, fmt.Errorf("size doesn't match"))
	}
	return value, nil
}

// Setxattr sets an extended attribute on the file or directory at path.
func Setxattr(path, name string, value []byte) error {
	if err := setxattr(path, xattrNamespace+name, value, len(value)); nil != err {
		return newXattrError("setxattr", path, name, err)
	}
	return nil
}

// XattrSupported probes whether the filesystem holding path supports extended
// attributes, by asking for an attribute that does not exist.
func XattrSupported(path string) bool {
	_, err := Getxattr(path, "#test")
	return err == nil || IsNoAttr(err)
}

//
// Internal syscall implementation. We don't use things like syscall.Getxattr
// directly so that the implementation can be shared between linux and darwin.
//

// Convert Errno to error.
func convertErrno(errno syscall.Errno) (err error) {
	if 0 != errno {
		err = errno
	}
	return
}

// getxattr is the internal implementation of Getxattr. See "man getxattr" for
// details.
func getxattr(path, name string, value []byte, size int) (int, error) {
	cpath, err := syscall.BytePtrFromString(path)
	if nil != err {
		return 0, fmt.Errorf("failed to convert path %q: %s", path, err)
	}
	cname, err := syscall.BytePtrFromString(name)
	if nil != err {
		return 0, fmt.Errorf("failed to convert name %q: %s", name, err)
	}

	var b *byte
	if 0 != len(value) {
		b = &value[0]
	}

	r, _, errno := syscall.Syscall6(
		sysGetxattr,
		uintptr(unsafe.Pointer(cpath)),
		uintptr(unsafe.Pointer(cname)),
		uintptr(unsafe.Pointer(b)),
		uintptr(size),
		0,
		0,
	)
	return int(r), convertErrno(errno)
}

// setxattr is the internal implementation of Setxattr. See "man setxattr" for
// details.
func setxattr(path, name string, value []byte, size int) error {
	cpath, err := syscall.BytePtrFromString(path)
	if nil != err {
		return fmt.Errorf("failed to convert path %q: %s", path, err)
	}
	cname, err := syscall.BytePtrFromString(name)
	if nil != err {
		return fmt.Errorf("failed to convert name %q: %s", name, err)
	}

	var b *byte
	if 0 != len(value) {
		b = &value[0]
	}

	_, _, errno := syscall.Syscall6(
		sysSetxattr,
		uintptr(unsafe.Pointer(cpath)),
		uintptr(unsafe.Pointer(cname)),
		uintptr(unsafe.Pointer(b)),
		uintptr(size),
		0,
		0,
	)
	return convertErrno(errno)
}
