//go:build linux

/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package interpose

import (
	"github.com/nydus-tracer/cfs-trace/pkg/envprop"
	"github.com/nydus-tracer/cfs-trace/pkg/pathnorm"
	"github.com/nydus-tracer/cfs-trace/pkg/traceevent"
)

// This file is the package's public surface: everything cmd/libcfstrace's
// cgo bridge calls into. It exists so the cgo boundary (C-string
// conversions, dlsym, the constructor trampoline) stays entirely in
// cmd/libcfstrace, while every policy decision -- and its test coverage --
// lives here in plain, cgo-free Go.

// IsActive reports whether this process is attached to a trace buffer.
func IsActive() bool {
	return global.isActive()
}

// LogMessage writes a leveled debug-trace message, per spec.md §5's
// "debug log file may be written by any process" rule.
func LogMessage(level int, msg string) {
	logDebug(level, msg)
}

// RefreshCwd re-caches the working directory (chdir/fchdir, spec.md §4.5).
func RefreshCwd() {
	global.refreshCwd()
}

// ResolvePath resolves path against the cached cwd. ok is false if the
// tracer is inactive, resolution failed, or the result is a suppressed
// system path -- in every such case the caller must skip the event.
func ResolvePath(path string) (resolved string, ok bool) {
	if !global.isActive() {
		return "", false
	}
	resolved, suppressed, err := resolvePath(path)
	if err != nil || suppressed {
		return "", false
	}
	return resolved, true
}

// ResolveAt is ResolvePath's dirfd-relative counterpart for the "…at"
// family (spec.md §4.5).
func ResolveAt(dirfd int, isFDCwd bool, path string) (resolved string, ok bool) {
	if !global.isActive() {
		return "", false
	}
	resolved, suppressed, err := resolveAt(dirfd, isFDCwd, path)
	if err != nil || suppressed {
		return "", false
	}
	return resolved, true
}

// ResolveFD looks up the path behind an open file descriptor, for
// fchmod/fchown (spec.md §4.5).
func ResolveFD(fd int) (path string, ok bool) {
	if !global.isActive() {
		return "", false
	}
	path, ok = resolveFD(fd)
	if !ok || pathnorm.IsSystemPath(path) {
		return "", false
	}
	return path, true
}

// IsDirectory reports whether path currently refers to a directory.
func IsDirectory(path string) bool {
	return pathnorm.IsDirectory(path)
}

// OpenKind classifies an open/open64/openat/openat64 flags word.
func OpenKind(flags int) traceevent.Kind {
	return traceevent.OpenFlagKind(flags, openAppend, openCreat, openWronly, openRdwr)
}

// FopenKind classifies an fopen/fopen64/freopen mode string.
func FopenKind(mode string) traceevent.Kind {
	return traceevent.FopenModeKind(mode)
}

// EmitEvent emits a single-path event, splitting to the directory variant
// if path currently refers to a directory.
func EmitEvent(kind traceevent.Kind, path string) {
	emitSingle(kind, path, pathnorm.IsDirectory(path))
}

// EmitEventForDir is EmitEvent with a caller-precomputed directory flag,
// required wherever the path is about to vanish (delete, rename-of-old).
func EmitEventForDir(kind traceevent.Kind, path string, isDir bool) {
	emitSingle(kind, path, isDir)
}

func emitSingle(kind traceevent.Kind, path string, isDir bool) {
	global.mu.RLock()
	buf, procNumber := global.buf, global.processNumber
	global.mu.RUnlock()
	if buf == nil {
		return
	}
	if isDir {
		kind = kind.AsDir()
	}
	_ = traceevent.Encode(buf, kind, procNumber, path)
}

// BuildPropagatedEnviron refreshes the five tracked environment variables
// (spec.md §4.3) across an exec/spawn boundary.
func BuildPropagatedEnviron(envp []string) []string {
	global.mu.RLock()
	bufID := 0
	if global.buf != nil {
		bufID = global.buf.ID()
	}
	st := envprop.State{
		BufferID:      bufID,
		ProcessNumber: global.processNumber,
		DebugLevel:    global.debugLevel,
		DebugLogPath:  global.debugLogPath,
		SavedPreload:  global.savedPreload,
	}
	global.mu.RUnlock()
	return envprop.Propagate(envp, st)
}
