//go:build linux

/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package interpose is the cgo-free constructor/shim policy half of the
// tracer: cmd/libcfstrace, the cgo c-shared library loaded via LD_PRELOAD
// ahead of the real libc, calls into it to implement spec.md §4.5/§4.6 in
// Go, and it calls out to
// pkg/pathnorm, pkg/tracebuf, pkg/traceevent and pkg/envprop for the
// policy decisions.
package interpose

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nydus-tracer/cfs-trace/pkg/envprop"
	"github.com/nydus-tracer/cfs-trace/pkg/nativeutil"
	"github.com/nydus-tracer/cfs-trace/pkg/pathnorm"
	"github.com/nydus-tracer/cfs-trace/pkg/tracebuf"
)

// state holds the per-process tracer state described in spec.md §5 ("cwd
// cache, own process number, saved preload string"). It is never shared
// across processes; mu guards it against concurrent threads of this one.
type state struct {
	mu sync.RWMutex

	active bool // false once CFS_ID was unset at constructor time

	buf           *tracebuf.Buffer
	processNumber uint32
	parentNumber  uint32
	debugLevel    int
	debugLogPath  string
	savedPreload  string

	cwd string
}

var global state

// isActive reports whether this process is attached to a trace buffer; every
// shim must treat an inactive tracer as a pure pass-through.
func (s *state) isActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *state) cachedCwd() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cwd
}

// refreshCwd re-reads the working directory, matching the constructor's
// and chdir/fchdir's "re-cache the cwd" behaviour (spec.md §4.5).
func (s *state) refreshCwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return s.cachedCwd()
	}
	s.mu.Lock()
	s.cwd = wd
	s.mu.Unlock()
	return wd
}

// Init performs the constructor steps of spec.md §4.6. It is called
// exactly once, from the cgo constructor trampoline in shim.c, before the
// traced program's own main() runs.
func Init() {
	cfsID, ok := os.LookupEnv("CFS_ID")
	if !ok {
		global.mu.Lock()
		global.active = false
		global.mu.Unlock()
		return
	}

	level := parseDebugLevel(os.Getenv("CFS_DEBUG"))
	logPath := os.Getenv("CFS_LOG_FILE")

	global.mu.Lock()
	global.debugLevel = level
	global.debugLogPath = logPath
	global.mu.Unlock()

	global.refreshCwd()

	exePath, err := nativeutil.ReadSymlink("/proc/self/exe")
	if err != nil {
		fatalInit("cfs: couldn't determine absolute path to running executable: %v", err)
	}

	rawCmdline, err := os.ReadFile("/proc/self/cmdline")
	if err != nil {
		fatalInit("cfs: couldn't determine command line arguments: %v", err)
	}
	argv := rewriteArgv0(exePath, splitNulTerminated(rawCmdline))

	rawEnviron, err := os.ReadFile("/proc/self/environ")
	if err != nil {
		fatalInit("cfs: couldn't determine command environment: %v", err)
	}
	envp := splitNulTerminated(rawEnviron)

	id, err := strconv.Atoi(cfsID)
	if err != nil {
		fatalInit("cfs: malformed CFS_ID %q: %v", cfsID, err)
	}
	buf, err := tracebuf.Attach(id)
	if err != nil {
		fatalInit("cfs: couldn't attach to trace buffer %d: %v", id, err)
	}

	parentNumber := parseProcessNumber(os.Getenv("CFS_PARENT_ID"))

	procNumber := emitNewProgram(buf, parentNumber, global.cachedCwd(), argv, envp)

	preload, ok := os.LookupEnv(envprop.PreloadVar)
	if !ok {
		fatalInit("cfs: can't access %s environment variable", envprop.PreloadVar)
	}

	global.mu.Lock()
	global.buf = buf
	global.processNumber = procNumber
	global.parentNumber = parentNumber
	global.savedPreload = preload
	global.active = true
	global.mu.Unlock()
}

// emitNewProgram writes the NEW_PROGRAM record directly (rather than via
// pkg/traceevent.NewProgram.Encode) so the single master-lock critical
// section from spec.md §4.6 step 10 covers process-number allocation too;
// NewProgram.Encode takes its own Lock/Unlock and would require a second,
// separate critical section.
func emitNewProgram(buf *tracebuf.Buffer, parentNumber uint32, cwd string, argv, envp []string) uint32 {
	buf.Lock()
	defer buf.Unlock()

	procNumber := buf.NextProcessNumber()
	_ = buf.WriteByte(8) // traceevent.NewProg
	_ = buf.WriteUint32(procNumber)
	_ = buf.WriteUint32(parentNumber)
	_ = buf.WriteString(cwd)
	_ = buf.WriteUint32(uint32(len(argv)))
	for _, a := range argv {
		_ = buf.WriteString(a)
	}
	for _, e := range envp {
		_ = buf.WriteString(e)
	}
	_ = buf.WriteString("")
	return procNumber
}

func fatalInit(format string, args ...interface{}) {
	logDebug(0, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// logDebug mirrors the original's leveled debug trace log, guarded by the
// buffer's log-file semaphore so concurrent writers from different traced
// processes don't interleave (spec.md §5 "the debug log file may be
// written by any process").
func logDebug(level int, msg string) {
	global.mu.RLock()
	threshold := global.debugLevel
	path := global.debugLogPath
	buf := global.buf
	global.mu.RUnlock()

	if level > threshold {
		return
	}

	if path == "" {
		logrus.Debugf("cfs[%d]: %s", os.Getpid(), msg)
		return
	}

	if buf != nil {
		buf.LockLogfile()
		defer buf.UnlockLogfile()
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "cfs[%d]: %s\n", os.Getpid(), msg)
}

// resolvePath implements the path-resolution boundary of spec.md §4.5 for
// a plain (non-…at) call: join against the cached cwd, canonicalise, and
// report whether the result should be suppressed as a system path.
func resolvePath(path string) (resolved string, suppressed bool, err error) {
	resolved, err = pathnorm.Combine(global.cachedCwd(), path)
	if err != nil {
		return "", false, err
	}
	return resolved, pathnorm.IsSystemPath(resolved), nil
}

// resolveAt implements the "…at" family's dirfd-relative resolution.
// AT_FDCWD (0 argument convention: callers pass isFDCwd=true) resolves
// against the cached cwd; otherwise the directory is looked up via
// /proc/self/fd/<dirfd> (spec.md §4.5 "Path resolution at the boundary").
func resolveAt(dirfd int, isFDCwd bool, path string) (resolved string, suppressed bool, err error) {
	if len(path) > 0 && path[0] == '/' {
		return resolvePath(path)
	}
	if isFDCwd {
		return resolvePath(path)
	}
	dir, err := nativeutil.ReadSymlink(fmt.Sprintf("/proc/self/fd/%d", dirfd))
	if err != nil {
		return "", false, err
	}
	// path is caller-controlled and dir comes from a dirfd the traced
	// process itself opened; a ".."-laden path could otherwise walk out
	// of dir through a symlink before we ever see it, so this join goes
	// through securejoin's root-escape-proof resolver rather than
	// Combine's plain realpath-style one.
	resolved, err = pathnorm.SecureResolve(dir, path)
	if err != nil {
		return "", false, err
	}
	return resolved, pathnorm.IsSystemPath(resolved), nil
}

// resolveFD implements the fd-to-path lookup used by fchmod/fchown
// (spec.md §4.5): failures or non-absolute results (e.g. "pipe:...",
// "socket:...") cause the caller to silently skip the event.
func resolveFD(fd int) (path string, ok bool) {
	link, err := nativeutil.ReadSymlink(fmt.Sprintf("/proc/self/fd/%d", fd))
	if err != nil || len(link) == 0 || link[0] != '/' {
		return "", false
	}
	return link, true
}
