//go:build linux

/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Command libcfstrace is the LD_PRELOAD shim library itself: built with
// `go build -buildmode=c-shared`, it produces libcfstrace.so. cgo's
// c-shared mode requires the exported-function package to be "main", so
// this package is intentionally a thin cgo<->Go string/array translation
// layer; every actual policy decision (path canonicalisation, event
// selection, environment propagation) lives in the cgo-free, unit-tested
// pkg/interpose.
package main

/*
#cgo LDFLAGS: -ldl
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/nydus-tracer/cfs-trace/pkg/interpose"
	"github.com/nydus-tracer/cfs-trace/pkg/traceevent"
)

func main() {} // required by -buildmode=c-shared, never actually called

//export CfsConstructor
func CfsConstructor() {
	interpose.Init()
}

//export CfsActive
func CfsActive() C.int {
	return boolToC(interpose.IsActive())
}

//export CfsLog
func CfsLog(level C.int, msg *C.char) {
	interpose.LogMessage(int(level), C.GoString(msg))
}

//export CfsRefreshCwd
func CfsRefreshCwd() {
	interpose.RefreshCwd()
}

// CfsResolvePath resolves path against the cached cwd. It returns NULL if
// the tracer is inactive, resolution fails, or the result is a suppressed
// system path. The caller owns the returned string and must free it with
// CfsFreeCString.
//
//export CfsResolvePath
func CfsResolvePath(path *C.char) *C.char {
	resolved, ok := interpose.ResolvePath(C.GoString(path))
	if !ok {
		return nil
	}
	return C.CString(resolved)
}

// CfsResolveAt is CfsResolvePath's "…at" counterpart: dirfd is ignored
// when isFDCwd is non-zero (the AT_FDCWD convention) or path is absolute.
//
//export CfsResolveAt
func CfsResolveAt(dirfd C.int, isFDCwd C.int, path *C.char) *C.char {
	resolved, ok := interpose.ResolveAt(int(dirfd), isFDCwd != 0, C.GoString(path))
	if !ok {
		return nil
	}
	return C.CString(resolved)
}

// CfsResolveFD looks up the path associated with an open file descriptor,
// for fchmod/fchown. Returns NULL if the lookup fails, the result isn't an
// absolute path (pipes, sockets), or it's a system path.
//
//export CfsResolveFD
func CfsResolveFD(fd C.int) *C.char {
	path, ok := interpose.ResolveFD(int(fd))
	if !ok {
		return nil
	}
	return C.CString(path)
}

// CfsIsDirectory reports whether path currently refers to a directory.
//
//export CfsIsDirectory
func CfsIsDirectory(path *C.char) C.int {
	return boolToC(interpose.IsDirectory(C.GoString(path)))
}

// CfsFreeCString releases a string returned by one of the Cfs* resolver
// functions.
//
//export CfsFreeCString
func CfsFreeCString(s *C.char) {
	C.free(unsafe.Pointer(s))
}

// CfsOpenKind classifies an open/open64/openat/openat64 flags word into a
// trace event kind.
//
//export CfsOpenKind
func CfsOpenKind(flags C.int) C.int {
	return C.int(interpose.OpenKind(int(flags)))
}

// CfsFopenKind classifies an fopen/fopen64/freopen mode string.
//
//export CfsFopenKind
func CfsFopenKind(mode *C.char) C.int {
	return C.int(interpose.FopenKind(C.GoString(mode)))
}

// CfsEmitEvent emits a single-path event for an already-resolved,
// already-checked path, applying the file/directory kind split based on
// the path's current type.
//
//export CfsEmitEvent
func CfsEmitEvent(kind C.int, path *C.char) {
	interpose.EmitEvent(kindFromC(kind), C.GoString(path))
}

// CfsEmitEventForDir is CfsEmitEvent with an explicit, caller-precomputed
// directory flag -- required for delete and rename-of-old-name events,
// whose target is about to vanish.
//
//export CfsEmitEventForDir
func CfsEmitEventForDir(kind C.int, path *C.char, isDir C.int) {
	interpose.EmitEventForDir(kindFromC(kind), C.GoString(path), isDir != 0)
}

// CfsBuildPropagatedEnviron builds a fresh, NULL-terminated "KEY=VALUE"
// array from an existing one, refreshing the five tracked variables so
// exec*/posix_spawn*/popen/system propagate the tracer's environment to
// the new process image. The result and every entry in it are malloc'd;
// free with CfsFreeEnviron.
//
//export CfsBuildPropagatedEnviron
func CfsBuildPropagatedEnviron(envp **C.char) **C.char {
	out := interpose.BuildPropagatedEnviron(goStringArray(envp))
	return cStringArray(out)
}

// CfsFreeEnviron releases an array built by CfsBuildPropagatedEnviron.
//
//export CfsFreeEnviron
func CfsFreeEnviron(envp **C.char) {
	if envp == nil {
		return
	}
	for p := envp; *p != nil; p = advance(p) {
		C.free(unsafe.Pointer(*p))
	}
	C.free(unsafe.Pointer(envp))
}

func boolToC(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

// kindFromC maps the small integer literals shim.c embeds inline (matching
// pkg/traceevent.Kind's byte values) back to the typed constant.
func kindFromC(k C.int) traceevent.Kind { return traceevent.Kind(k) }

// goStringArray converts a NULL-terminated char** into a []string.
func goStringArray(arr **C.char) []string {
	if arr == nil {
		return nil
	}
	var out []string
	for p := arr; *p != nil; p = advance(p) {
		out = append(out, C.GoString(*p))
	}
	return out
}

// cStringArray allocates a NULL-terminated char** from a []string.
func cStringArray(ss []string) **C.char {
	ptrSize := unsafe.Sizeof(uintptr(0))
	arr := C.malloc(C.size_t(uintptr(len(ss)+1) * ptrSize))
	base := (*[1 << 28]*C.char)(arr)
	for i, s := range ss {
		base[i] = C.CString(s)
	}
	base[len(ss)] = nil
	return (**C.char)(arr)
}

func advance(p **C.char) **C.char {
	ptrSize := unsafe.Sizeof(uintptr(0))
	return (**C.char)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + ptrSize))
}
