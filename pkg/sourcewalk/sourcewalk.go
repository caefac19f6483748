/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package sourcewalk implements the driver's optional initial source-tree
// scan (the `-r` flag): before the traced command ever runs, every
// regular file already present under the current directory is recorded
// as a REGISTER event, so the resulting trace distinguishes pre-existing
// source files from files the traced command itself produces. Grounded on
// original_source/ComponentFS/.../cfs_traverse_source.c's
// traverse_and_trace_source().
package sourcewalk

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/nydus-tracer/cfs-trace/pkg/traceevent"
)

// Writer is the subset of tracebuf.Buffer the walk needs.
type Writer = traceevent.Writer

// Walk records every regular file under root as a REGISTER event,
// attributed to processNumber. Directories and symlinks are skipped, per
// the original's FTW_F-only filter; a file that vanishes mid-walk (a
// race with the very build this trace is capturing) is silently skipped
// rather than aborting the whole scan.
func Walk(w Writer, processNumber uint32, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errors.Wrap(err, "sourcewalk: resolve root")
	}

	return filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return traceevent.Encode(w, traceevent.Register, processNumber, path)
	})
}
