/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package nativeutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateSymlinkAndReadSymlink(t *testing.T) {
	A := assert.New(t)

	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	A.NoError(os.WriteFile(target, []byte("x"), 0644))

	link := filepath.Join(dir, "link")
	A.NoError(CreateSymlink(target, link))

	isLink, err := IsSymlink(link)
	A.NoError(err)
	A.True(isLink)

	got, err := ReadSymlink(link)
	A.NoError(err)
	A.Equal(target, got)
}

func TestIsSymlinkFalseForRegularFile(t *testing.T) {
	A := assert.New(t)

	path := filepath.Join(t.TempDir(), "plain")
	A.NoError(os.WriteFile(path, []byte("x"), 0644))

	isLink, err := IsSymlink(path)
	A.NoError(err)
	A.False(isLink)
}

func TestChmod(t *testing.T) {
	A := assert.New(t)

	path := filepath.Join(t.TempDir(), "f")
	A.NoError(os.WriteFile(path, []byte("x"), 0644))
	A.NoError(Chmod(path, 0600))

	info, err := os.Stat(path)
	A.NoError(err)
	A.Equal(os.FileMode(0600), info.Mode().Perm())
}
