/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package envprop maintains the four tracked environment variables (plus
// the dynamic-preload variable) across every call that launches a new
// process image, per spec.md §4.3.
package envprop

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// PreloadVar is the OS's dynamic-preload environment variable name.
const PreloadVar = "LD_PRELOAD"

const (
	idVar       = "CFS_ID"
	parentIDVar = "CFS_PARENT_ID"
	debugVar    = "CFS_DEBUG"
	logFileVar  = "CFS_LOG_FILE"
)

// State is the subset of per-process state (spec.md §3) the propagator
// needs to refresh the five tracked variables.
type State struct {
	BufferID      int
	ProcessNumber uint32
	DebugLevel    int
	DebugLogPath  string
	SavedPreload  string
}

// Propagate returns a copy of env with the five tracked variables set
// authoritatively, preserving every other entry's position. Existing
// occurrences of a tracked variable are overwritten in place; missing ones
// are appended.
func Propagate(env []string, st State) []string {
	out := make([]string, len(env))
	copy(out, env)

	wanted := map[string]string{
		idVar:       strconv.Itoa(st.BufferID),
		parentIDVar: strconv.Itoa(int(st.ProcessNumber)),
		debugVar:    strconv.Itoa(st.DebugLevel),
		logFileVar:  st.DebugLogPath,
		PreloadVar:  st.SavedPreload,
	}

	seen := make(map[string]bool, len(wanted))
	for i, kv := range out {
		name, existing, ok := splitEnv(kv)
		if !ok {
			continue
		}
		val, tracked := wanted[name]
		if !tracked {
			continue
		}
		if name == PreloadVar && existing != st.SavedPreload {
			logrus.Warnf("envprop: %s changed from %q to %q; restoring tracer value",
				PreloadVar, existing, st.SavedPreload)
		}
		out[i] = name + "=" + val
		seen[name] = true
	}

	for name, val := range wanted {
		if !seen[name] {
			out = append(out, name+"="+val)
		}
	}
	return out
}

func splitEnv(kv string) (name, value string, ok bool) {
	idx := strings.IndexByte(kv, '=')
	if idx < 0 {
		return "", "", false
	}
	return kv[:idx], kv[idx+1:], true
}
