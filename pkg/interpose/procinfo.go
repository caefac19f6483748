/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package interpose

import (
	"bytes"
	"strconv"
)

// splitNulTerminated splits a /proc/self/cmdline- or /proc/self/environ-
// style buffer into its NUL-separated entries. Such buffers do not always
// end with a trailing NUL (spec.md §4.6 step 5); a dangling final entry
// with no terminator is still returned.
func splitNulTerminated(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	trimmed := raw
	if trimmed[len(trimmed)-1] == 0 {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) == 0 {
		return nil
	}
	parts := bytes.Split(trimmed, []byte{0})
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out
}

// rewriteArgv0 implements the constructor's argv[0]-replacement step
// (spec.md §4.6 step 6): the raw argv read from /proc/self/cmdline has its
// first entry (typically a relative command name) discarded in favour of
// the absolute executable path read from /proc/self/exe. Every other
// argument is preserved in order.
func rewriteArgv0(absExePath string, rawArgv []string) []string {
	if len(rawArgv) == 0 {
		return []string{absExePath}
	}
	out := make([]string, len(rawArgv))
	out[0] = absExePath
	copy(out[1:], rawArgv[1:])
	return out
}

// parseDebugLevel clamps an environment-supplied debug level string into
// [0, 2] (spec.md §4.6 step 2). A non-numeric or missing value resolves to
// 0, matching the C original's atoi()-returns-0-on-error behaviour.
func parseDebugLevel(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if n < 0 {
		return 0
	}
	if n > 2 {
		return 2
	}
	return n
}

// parseProcessNumber parses CFS_PARENT_ID, defaulting to 0 on absence or
// malformed input (spec.md §4.6 step 9), mirroring atoi()'s error behaviour.
func parseProcessNumber(raw string) uint32 {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return uint32(n)
}
