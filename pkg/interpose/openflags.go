//go:build linux

/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package interpose

import "golang.org/x/sys/unix"

// These mirror the O_* bit values the C shim sees in its own <fcntl.h>;
// x/sys/unix exposes the same Linux constants so CfsOpenKind classifies
// flags identically regardless of which libc the traced binary was built
// against.
const (
	openAppend = unix.O_APPEND
	openCreat  = unix.O_CREAT
	openWronly = unix.O_WRONLY
	openRdwr   = unix.O_RDWR
)
