/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package pathnorm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineAbsoluteExtraIgnoresParent(t *testing.T) {
	A := assert.New(t)

	dir := t.TempDir()
	abs := filepath.Join(dir, "x")
	require.NoError(t, os.WriteFile(abs, []byte("x"), 0644))

	got, err := Combine("/some/unrelated/parent", abs)
	A.NoError(err)

	want, err := Combine("/", abs)
	A.NoError(err)
	A.Equal(want, got)
}

func TestCombineMissingLeafToleratesNotYetExisting(t *testing.T) {
	A := assert.New(t)

	dir := t.TempDir()
	resolvedDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	got, err := Combine(resolvedDir, "does-not-exist-yet")
	A.NoError(err)
	A.Equal(filepath.Join(resolvedDir, "does-not-exist-yet"), got)
}

func TestCombineMissingLeafReachingRoot(t *testing.T) {
	A := assert.New(t)

	got, err := Combine("/", "nonexistent-top-level-entry")
	A.NoError(err)
	A.Equal("/nonexistent-top-level-entry", got)
}

func TestCombineIdempotent(t *testing.T) {
	A := assert.New(t)

	dir := t.TempDir()
	first, err := Combine(dir, "leaf")
	A.NoError(err)

	second, err := Combine(first, "")
	A.NoError(err)
	A.Equal(first, second)
}

func TestSecureResolveStaysUnderRoot(t *testing.T) {
	A := assert.New(t)

	root := t.TempDir()
	resolvedRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(resolvedRoot, "sub"), 0755))

	got, err := SecureResolve(resolvedRoot, "sub/../../../../etc/passwd")
	A.NoError(err)
	A.True(strings.HasPrefix(got, resolvedRoot), "resolved path %q escaped root %q", got, resolvedRoot)
}

func TestSecureResolveFollowsEscapingSymlink(t *testing.T) {
	A := assert.New(t)

	root := t.TempDir()
	resolvedRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	require.NoError(t, os.Symlink("/etc", filepath.Join(resolvedRoot, "escape")))

	got, err := SecureResolve(resolvedRoot, "escape/passwd")
	A.NoError(err)
	A.True(strings.HasPrefix(got, resolvedRoot), "resolved path %q escaped root %q", got, resolvedRoot)
}

func TestSecureResolveToleratesMissingLeaf(t *testing.T) {
	A := assert.New(t)

	root := t.TempDir()
	resolvedRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	got, err := SecureResolve(resolvedRoot, "not-yet-created")
	A.NoError(err)
	A.Equal(filepath.Join(resolvedRoot, "not-yet-created"), got)
}

func TestBasename(t *testing.T) {
	A := assert.New(t)

	A.Equal("/", Basename("/"))
	A.Equal("foo", Basename("/a/b/foo"))
	A.Equal("foo", Basename("/a/b/foo/"))
	A.Equal("foo", Basename("foo"))
}

func TestIsDirectory(t *testing.T) {
	A := assert.New(t)

	dir := t.TempDir()
	A.True(IsDirectory(dir))

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	A.False(IsDirectory(file))

	A.False(IsDirectory(filepath.Join(dir, "missing")))
}

func TestIsSystemPath(t *testing.T) {
	A := assert.New(t)

	A.True(IsSystemPath("/dev/null"))
	A.True(IsSystemPath("/proc/self/exe"))
	A.True(IsSystemPath("/sys/class/net"))
	A.False(IsSystemPath("/home/user/project/main.go"))
}
