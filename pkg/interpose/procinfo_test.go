/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package interpose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitNulTerminatedWithTrailingNul(t *testing.T) {
	raw := []byte("prog\x00-a\x00--flag=1\x00")
	assert.Equal(t, []string{"prog", "-a", "--flag=1"}, splitNulTerminated(raw))
}

func TestSplitNulTerminatedWithoutTrailingNul(t *testing.T) {
	raw := []byte("prog\x00-a\x00--flag=1")
	assert.Equal(t, []string{"prog", "-a", "--flag=1"}, splitNulTerminated(raw))
}

func TestSplitNulTerminatedEmpty(t *testing.T) {
	assert.Nil(t, splitNulTerminated(nil))
	assert.Nil(t, splitNulTerminated([]byte{0}))
}

func TestRewriteArgv0ReplacesFirstEntryOnly(t *testing.T) {
	got := rewriteArgv0("/usr/bin/make", []string{"make", "-j4", "all"})
	assert.Equal(t, []string{"/usr/bin/make", "-j4", "all"}, got)
}

func TestRewriteArgv0EmptyArgv(t *testing.T) {
	got := rewriteArgv0("/usr/bin/make", nil)
	assert.Equal(t, []string{"/usr/bin/make"}, got)
}

func TestParseDebugLevelClamps(t *testing.T) {
	assert.Equal(t, 0, parseDebugLevel(""))
	assert.Equal(t, 0, parseDebugLevel("not-a-number"))
	assert.Equal(t, 0, parseDebugLevel("-1"))
	assert.Equal(t, 1, parseDebugLevel("1"))
	assert.Equal(t, 2, parseDebugLevel("2"))
	assert.Equal(t, 2, parseDebugLevel("99"))
}

func TestParseProcessNumberDefaultsToZero(t *testing.T) {
	assert.EqualValues(t, 0, parseProcessNumber(""))
	assert.EqualValues(t, 0, parseProcessNumber("nope"))
	assert.EqualValues(t, 0, parseProcessNumber("-5"))
	assert.EqualValues(t, 42, parseProcessNumber("42"))
}
