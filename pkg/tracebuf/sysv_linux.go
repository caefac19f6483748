/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

//go:build linux

package tracebuf

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// golang.org/x/sys/unix wraps the SysV shared-memory syscalls directly
// (SysvShmGet/SysvShmAttach/SysvShmDetach/SysvShmCtl) but has no equivalent
// for the SysV semaphore family, so the three operations the buffer needs
// (semget, semop, semctl with SETVAL/IPC_RMID) are issued as raw syscalls
// against the same kernel ABI the original interposer's semget/semop/semctl
// calls used.

type sembuf struct {
	SemNum uint16
	SemOp  int16
	SemFlg int16
}

func semget(key, nsems, semflg int) (int, error) {
	id, _, errno := unix.Syscall(unix.SYS_SEMGET, uintptr(key), uintptr(nsems), uintptr(semflg))
	if errno != 0 {
		return -1, errno
	}
	return int(id), nil
}

func semop(semid int, ops []sembuf) error {
	_, _, errno := unix.Syscall(unix.SYS_SEMOP, uintptr(semid), uintptr(unsafe.Pointer(&ops[0])), uintptr(len(ops)))
	if errno != 0 {
		return errno
	}
	return nil
}

// semtimedop is semop with a timeout, used so wait-for-full can be
// interrupted promptly by EINTR/child-exit rather than blocking forever.
func semtimedop(semid int, ops []sembuf, timeout *unix.Timespec) error {
	var tsPtr uintptr
	if timeout != nil {
		tsPtr = uintptr(unsafe.Pointer(timeout))
	}
	_, _, errno := unix.Syscall6(unix.SYS_SEMTIMEDOP, uintptr(semid), uintptr(unsafe.Pointer(&ops[0])), uintptr(len(ops)), tsPtr, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func semctlSetVal(semid, semnum, val int) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(semid), uintptr(semnum), unix.SETVAL, uintptr(val), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func semctlRemove(semid int) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(semid), 0, unix.IPC_RMID, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func shmCreate(size int) (id int, err error) {
	return unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|0600)
}

func shmAttach(id int) (uintptr, error) {
	return unix.SysvShmAttach(id, 0, 0)
}

func shmDetach(addr uintptr) error {
	return unix.SysvShmDetach(addr)
}

// shmMarkForRemoval sets IPC_RMID so the region is destroyed automatically
// once the last process detaches, so it cannot outlive the build even if
// the driver crashes before its own teardown runs.
func shmMarkForRemoval(id int) error {
	_, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil)
	return err
}
