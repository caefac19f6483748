/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package errdefs defines the error categories spec'd for path
// normalisation and trace-buffer failures, and a handful of Is* helpers
// in the same style as the teacher's pkg/errdefs.
package errdefs

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument is returned when both input paths are empty.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNameTooLong is returned when an intermediate path exceeds the
	// platform path-length limit.
	ErrNameTooLong = errors.New("name too long")
	// ErrNotFound is returned only when a missing-leaf retry (see
	// pkg/pathnorm) itself fails to resolve; callers that hit ENOENT on the
	// final component never see this, by design.
	ErrNotFound = errors.New("no such file or directory")
	// ErrLoop is returned when symlink resolution detects a cycle.
	ErrLoop = errors.New("too many levels of symbolic links")
	// ErrAccessDenied wraps EACCES/EPERM from the underlying stat/realpath
	// calls.
	ErrAccessDenied = errors.New("permission denied")
	// ErrNotADirectory is returned when a non-leaf path component is not a
	// directory.
	ErrNotADirectory = errors.New("not a directory")
	// ErrIO wraps any other I/O failure surfaced during normalisation.
	ErrIO = errors.New("I/O error")
	// ErrNotAttached is returned by every tracebuf operation when the
	// calling process never attached to a buffer (CFS_ID unset). Per
	// spec.md §4.2 this is not a failure a caller should propagate to the
	// traced libc call; it just disables tracing for this process.
	ErrNotAttached = errors.New("trace buffer not attached")
	// ErrAlreadyCreated is returned by tracebuf.Create when this process
	// has already created a buffer (spec.md: "at most one buffer may exist
	// per process").
	ErrAlreadyCreated = errors.New("trace buffer already created in this process")
	// ErrNestedTracing is returned by the driver when CFS_ID is already
	// set in its own environment, i.e. it is itself running under a
	// tracer (spec.md §4.7 step 1).
	ErrNestedTracing = errors.New("refusing to run nested: CFS_ID is already set")
)

// IsNotFound returns true if err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotAttached returns true if err is, or wraps, ErrNotAttached.
func IsNotAttached(err error) bool {
	return errors.Is(err, ErrNotAttached)
}

// IsAlreadyCreated returns true if err is, or wraps, ErrAlreadyCreated.
func IsAlreadyCreated(err error) bool {
	return errors.Is(err, ErrAlreadyCreated)
}

// IsNestedTracing returns true if err is, or wraps, ErrNestedTracing.
func IsNestedTracing(err error) bool {
	return errors.Is(err, ErrNestedTracing)
}
