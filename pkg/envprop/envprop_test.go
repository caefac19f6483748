/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package envprop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropagateAppendsMissingVars(t *testing.T) {
	A := assert.New(t)

	env := []string{"PATH=/usr/bin", "HOME=/root"}
	st := State{
		BufferID:     42,
		ProcessNumber: 3,
		DebugLevel:   1,
		DebugLogPath: "/tmp/cfs.log",
		SavedPreload: "/usr/local/lib/libcfs.so",
	}

	got := Propagate(env, st)
	index := map[string]string{}
	for _, kv := range got {
		name, val, ok := splitEnv(kv)
		A.True(ok)
		index[name] = val
	}

	A.Equal("/usr/bin", index["PATH"])
	A.Equal("/root", index["HOME"])
	A.Equal("42", index["CFS_ID"])
	A.Equal("3", index["CFS_PARENT_ID"])
	A.Equal("1", index["CFS_DEBUG"])
	A.Equal("/tmp/cfs.log", index["CFS_LOG_FILE"])
	A.Equal("/usr/local/lib/libcfs.so", index[PreloadVar])
}

func TestPropagateOverwritesExistingSlotsInPlace(t *testing.T) {
	A := assert.New(t)

	env := []string{"CFS_ID=1", "PATH=/bin", "LD_PRELOAD=/wrong/path.so"}
	st := State{
		BufferID:     7,
		ProcessNumber: 1,
		SavedPreload: "/usr/local/lib/libcfs.so",
	}

	got := Propagate(env, st)
	A.Len(got, 6) // 3 existing slots + CFS_PARENT_ID, CFS_DEBUG, CFS_LOG_FILE appended
	A.Equal("CFS_ID=7", got[0])
	A.Equal("PATH=/bin", got[1])
	A.Equal("LD_PRELOAD=/usr/local/lib/libcfs.so", got[2])
}
