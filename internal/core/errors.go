// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

// Error is our own defined error type for results that cross component (and
// eventually wire) boundaries.
type Error int

const (
	// NoError means no error.
	NoError = Error(iota)

	// ErrNoObj is returned when an object cannot be found after a ring
	// lookup and a full working-directory scan.
	ErrNoObj

	// ErrIO is returned for a local disk error: the last disk refusing I/O,
	// or the multi-disk layer being disabled.
	ErrIO

	// ErrNetwork is returned to invite the caller's client-side retry logic
	// while recovery proceeds asynchronously.
	ErrNetwork

	// ErrUnknown is returned by the admin surface when a plug or unplug
	// request changed nothing.
	ErrUnknown
)

var description = map[Error]string{
	NoError:    "no error",
	ErrNoObj:   "object does not exist",
	ErrIO:      "I/O level error",
	ErrNetwork: "network error, retry",
	ErrUnknown: "unknown error",
}

// String returns a human readable error message.
func (e Error) String() string {
	if s, ok := description[e]; ok {
		return s
	}
	return "NO DESCRIPTION FOR ERROR FIX THIS"
}

// Error returns a golang error object corresponding to this Error, or nil
// for NoError.
func (e Error) Error() error {
	if e == NoError {
		return nil
	}
	return goError(e)
}

// Is checks whether the generic Go error 'g' is actually the receiver
// underneath.
func (e Error) Is(g error) bool {
	b, ok := g.(goError)
	return ok && (Error)(b) == e
}

// goError is a wrapper type to make our Error act like Go's 'error'.
type goError Error

// Error implements the 'error' interface.
func (g goError) Error() string {
	return (Error)(g).String()
}

// FromError gets the underlying core.Error from an error.
func FromError(err error) (Error, bool) {
	e, ok := err.(goError)
	return Error(e), ok
}

// IsRetriableError checks if the caller should retry on a given returned
// error. ErrNetwork is the only result we hand out specifically to provoke a
// retry.
func IsRetriableError(err Error) bool {
	return err == ErrNetwork
}
