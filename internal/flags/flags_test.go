/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package flags

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFlags(t *testing.T) {
	set := flag.NewFlagSet("test", 0)
	flags := NewFlags()
	for _, f := range flags.F {
		err := f.Apply(set)
		assert.Nil(t, err)
	}
	err := set.Parse([]string{"-o", "/tmp/out.trace", "-d", "2", "-r", "--log-level", "debug"})
	assert.Nil(t, err)
	assert.Equal(t, "/tmp/out.trace", flags.Args.TraceFile)
	assert.Equal(t, 2, flags.Args.DebugLevel)
	assert.True(t, flags.Args.ScanSources)
	assert.Equal(t, "debug", flags.Args.LogLevel)
}

func TestNewFlagsDefaults(t *testing.T) {
	set := flag.NewFlagSet("test", 0)
	flags := NewFlags()
	for _, f := range flags.F {
		err := f.Apply(set)
		assert.Nil(t, err)
	}
	err := set.Parse(nil)
	assert.Nil(t, err)
	assert.Equal(t, DefaultTraceFile, flags.Args.TraceFile)
	assert.Equal(t, DefaultLogLevel, flags.Args.LogLevel)
	assert.False(t, flags.Args.LogToStdout)
}
