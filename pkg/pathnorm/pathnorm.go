/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package pathnorm turns any combination of (parent, extra) into a single
// canonical absolute path suitable for trace entries, tolerating a leaf
// component that does not yet exist (needed so creat/open(O_CREAT) can be
// traced on files that haven't been written yet).
package pathnorm

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"

	"github.com/nydus-tracer/cfs-trace/internal/errdefs"
)

// pathMax mirrors Linux's PATH_MAX (linux/limits.h); golang.org/x/sys/unix
// does not export it as a named constant.
const pathMax = 4096

// systemPrefixes are the path roots whose events are always suppressed.
var systemPrefixes = []string{"/dev/", "/proc/", "/sys/"}

// systemPathMemo caches IsSystemPath results, since every successful shim
// invocation calls it at least once and the prefix check, while cheap, is on
// the hot path of every interposed call.
var systemPathMemo sync.Map // map[string]bool

// Combine joins parent and extra into one canonical absolute path.
//
// If extra is absolute, parent is ignored. Otherwise the two are joined with
// a single '/' and the result is canonicalised (., .., symlinks resolved).
// A leaf component that does not yet exist is tolerated: Combine strips it,
// canonicalises the parent, and re-appends the literal tail.
func Combine(parent, extra string) (string, error) {
	if parent == "" && extra == "" {
		return "", errors.Wrap(errdefs.ErrInvalidArgument, "combine")
	}

	if strings.HasPrefix(extra, "/") {
		parent = ""
	}

	joined := parent
	if joined == "" {
		joined = "/"
	}
	if !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	joined += extra

	if len(joined) > pathMax {
		return "", errors.Wrap(errdefs.ErrNameTooLong, "combine")
	}

	resolved, err := canonicalize(joined)
	if err == nil {
		return resolved, nil
	}
	if !errdefs.IsNotFound(err) {
		return "", err
	}

	// Missing leaf: strip the trailing component (ignoring a trailing '/')
	// and retry against the parent directory.
	trimmed := strings.TrimRight(joined, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 {
		// Reached (or started at) the root; the whole path is rooted at "/".
		if idx < 0 {
			return "/" + trimmed, nil
		}
		return "/" + trimmed[idx+1:], nil
	}

	parentDir := trimmed[:idx]
	tail := trimmed[idx:] // includes the leading '/'

	resolvedParent, err := canonicalize(parentDir)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(resolvedParent, "/") + tail, nil
}

// canonicalize resolves "." / ".." and symlinks the way realpath(3) does:
// every component, including the last, must exist. A missing final or
// intermediate component surfaces as errdefs.ErrNotFound, which Combine
// uses to trigger the missing-leaf retry.
func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrap(errdefs.ErrIO, err.Error())
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", translateErr(err)
	}
	return filepath.Clean(resolved), nil
}

// SecureResolve is the securejoin-backed cross-check used when a caller
// needs a symlink resolution that can never escape root (e.g. resolving a
// directory-fd's path from /proc/self/fd before appending a relative
// component). It never returns ErrNotFound: a missing leaf simply resolves
// to the lexical join, matching securejoin's "safe for future creation"
// contract.
func SecureResolve(root, unsafePath string) (string, error) {
	resolved, err := securejoin.SecureJoinVFS(root, unsafePath, nil)
	if err != nil {
		return "", translateErr(err)
	}
	return resolved, nil
}

func translateErr(err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENOENT):
		return errors.Wrap(errdefs.ErrNotFound, err.Error())
	case errors.Is(err, syscall.ELOOP):
		return errors.Wrap(errdefs.ErrLoop, err.Error())
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES):
		return errors.Wrap(errdefs.ErrAccessDenied, err.Error())
	case errors.Is(err, syscall.ENOTDIR):
		return errors.Wrap(errdefs.ErrNotADirectory, err.Error())
	default:
		return errors.Wrap(errdefs.ErrIO, err.Error())
	}
}

// Basename returns the final path component, ignoring trailing slashes and
// duplicate separators. Basename("/") is "/".
func Basename(path string) string {
	if path == "" {
		return "."
	}
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "/"
	}
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// IsDirectory reports whether path currently refers to a directory. A
// non-existent path is reported as non-directory, not an error.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsSystemPath reports whether path is under /dev, /proc, or /sys. Events
// for these paths are suppressed entirely.
func IsSystemPath(path string) bool {
	if v, ok := systemPathMemo.Load(path); ok {
		return v.(bool)
	}
	result := false
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(path, prefix) {
			result = true
			break
		}
	}
	systemPathMemo.Store(path, result)
	return result
}
