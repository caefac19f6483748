//go:build linux

/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydus-tracer/cfs-trace/internal/flags"
)

func TestResolveLibraryPathExplicit(t *testing.T) {
	A := assert.New(t)

	dir := t.TempDir()
	rel := filepath.Join(dir, "custom.so")
	got, err := resolveLibraryPath(rel)
	A.NoError(err)
	A.Equal(rel, got)
}

func TestResolveLibraryPathDefault(t *testing.T) {
	A := assert.New(t)

	self, err := os.Executable()
	require.NoError(t, err)

	got, err := resolveLibraryPath("")
	A.NoError(err)
	A.Equal(filepath.Join(filepath.Dir(self), defaultLibraryName), got)
}

func TestVerifyWritableCreatesFile(t *testing.T) {
	A := assert.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")
	A.NoError(verifyWritable(path))
	_, err := os.Stat(path)
	A.NoError(err)
}

func TestVerifyWritableRejectsUnwritableDir(t *testing.T) {
	A := assert.New(t)

	path := filepath.Join(t.TempDir(), "nope", "debug.log")
	A.Error(verifyWritable(path))
}

func TestBuildChildCommandDefaultsToShell(t *testing.T) {
	A := assert.New(t)

	t.Setenv("SHELL", "/bin/sh")
	cmd, err := buildChildCommand(nil, 42, "/opt/libcfstrace.so", &flags.Args{})
	A.NoError(err)
	A.Contains(cmd.Args[0], "sh")

	var foundPreload, foundID bool
	for _, kv := range cmd.Env {
		if kv == "LD_PRELOAD=/opt/libcfstrace.so" {
			foundPreload = true
		}
		if kv == "CFS_ID=42" {
			foundID = true
		}
	}
	A.True(foundPreload, "expected LD_PRELOAD to be set")
	A.True(foundID, "expected CFS_ID to be set")
}
