/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package nativeutil holds the small set of symlink/permission primitives
// that pkg/interpose needs directly, and that the
// out-of-scope JNI-style native helper (spec.md §1) would also expose to a
// host-language caller under a different calling convention.
package nativeutil

import "os"

// IsSymlink reports whether path is a symbolic link, without following it.
func IsSymlink(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}

// ReadSymlink returns the literal target of the symlink at path.
func ReadSymlink(path string) (string, error) {
	return os.Readlink(path)
}

// CreateSymlink creates a symlink at linkPath pointing at target.
func CreateSymlink(target, linkPath string) error {
	return os.Symlink(target, linkPath)
}

// Chmod changes path's permission bits.
func Chmod(path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}
