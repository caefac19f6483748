//go:build linux

/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package tracebuf implements the named shared-memory trace buffer:
// header + payload region, guarded by a three-semaphore set (master,
// full, log-file), written concurrently by an unbounded set of producer
// processes and drained by exactly one consumer (spec.md §3–§5).
package tracebuf

import (
	"encoding/binary"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	"github.com/nydus-tracer/cfs-trace/internal/errdefs"
)

// DefaultRegionSize is the default 1 MiB payload+header region (spec.md §3).
const DefaultRegionSize = 1 << 20

const (
	semMaster  = 0
	semFull    = 1
	semLogFile = 2
	numSems    = 3
)

// WaitStatus is the outcome of WaitUntilFull.
type WaitStatus int

const (
	// StatusFull means the payload has data ready to be drained.
	StatusFull WaitStatus = iota
	// StatusEOF means the driver's direct child has terminated; no more
	// data will ever arrive.
	StatusEOF
)

// processCreated guards spec.md's "at most one buffer may exist per
// process" invariant; Create fails if this process has already created one.
var processCreated int32

// Buffer is one attachment to a trace buffer region, either as its
// creator (the driver) or as an attaching producer (a traced process).
type Buffer struct {
	id        int // shm id, a.k.a. the CFS_ID value
	semID     int
	base      uintptr
	size      int
	isCreator bool
	attached  bool

	// localMu guards the attached/isCreator bookkeeping of this Go value
	// itself (concurrent goroutines within one process), distinct from
	// the master semaphore which arbitrates across processes.
	localMu sync.Mutex
	localSem *semaphore.Weighted

	childTerminated int32
	sigCh           chan os.Signal
}

// Create allocates a fresh shared-memory region of size bytes (0 selects
// DefaultRegionSize), attaches it, initialises the header and the three
// semaphores, marks the region for destruction once the last process
// detaches, and installs the SIGCHLD-driven EOF signal.
func Create(size int) (*Buffer, error) {
	if !atomic.CompareAndSwapInt32(&processCreated, 0, 1) {
		return nil, errdefs.ErrAlreadyCreated
	}
	if size <= 0 {
		size = DefaultRegionSize
	}

	shmID, err := shmCreate(size)
	if err != nil {
		atomic.StoreInt32(&processCreated, 0)
		return nil, errors.Wrap(err, "shmget")
	}

	base, err := shmAttach(shmID)
	if err != nil {
		atomic.StoreInt32(&processCreated, 0)
		return nil, errors.Wrap(err, "shmat")
	}

	semID, err := semget(unix.IPC_PRIVATE, numSems, unix.IPC_CREAT|0600)
	if err != nil {
		_ = shmDetach(base)
		atomic.StoreInt32(&processCreated, 0)
		return nil, errors.Wrap(err, "semget")
	}
	if err := semctlSetVal(semID, semMaster, 1); err != nil {
		return nil, errors.Wrap(err, "init master semaphore")
	}
	if err := semctlSetVal(semID, semFull, 1); err != nil {
		return nil, errors.Wrap(err, "init full semaphore")
	}
	if err := semctlSetVal(semID, semLogFile, 1); err != nil {
		return nil, errors.Wrap(err, "init log-file semaphore")
	}

	h := headerAt(base)
	h.magic = bufferMagic
	h.payloadUsed = 0
	h.semID = int32(semID)
	h.creatorPID = int32(os.Getpid())
	h.nextProcNum = 0

	// So the region cannot outlive the build even if the driver crashes
	// before its own teardown runs. The semaphore set is not covered by
	// this mark; only the creator's Detach removes it.
	if err := shmMarkForRemoval(shmID); err != nil {
		return nil, errors.Wrap(err, "mark shm for removal")
	}

	b := &Buffer{
		id:        shmID,
		semID:     semID,
		base:      base,
		size:      size,
		isCreator: true,
		attached:  true,
		localSem:  semaphore.NewWeighted(1),
	}
	b.installChildTerminationHandler()
	return b, nil
}

// Attach joins an existing region by id, verifying the magic.
func Attach(id int) (*Buffer, error) {
	base, err := shmAttach(id)
	if err != nil {
		return nil, errors.Wrap(err, "shmat")
	}
	h := headerAt(base)
	if h.magic != bufferMagic {
		_ = shmDetach(base)
		return nil, errors.New("trace buffer: bad magic on attach")
	}
	return &Buffer{
		id:       id,
		semID:    int(h.semID),
		base:     base,
		size:     DefaultRegionSize,
		attached: true,
		localSem: semaphore.NewWeighted(1),
	}, nil
}

// ID returns the shared-memory identifier, i.e. the value propagated via
// CFS_ID.
func (b *Buffer) ID() int { return b.id }

// Attached reports whether this Buffer is usable; callers use this to
// implement the "not attached -> silent no-op" contract of spec.md §4.2.
func (b *Buffer) Attached() bool {
	b.localMu.Lock()
	defer b.localMu.Unlock()
	return b.attached
}

// Detach detaches from the region; if this process created it, it also
// destroys the semaphore set (the kernel already destroys the region
// itself once the last attachment goes away, per Create's IPC_RMID mark).
func (b *Buffer) Detach() error {
	b.localMu.Lock()
	defer b.localMu.Unlock()
	if !b.attached {
		return nil
	}
	err := shmDetach(b.base)
	if b.isCreator {
		if rmErr := semctlRemove(b.semID); rmErr != nil && err == nil {
			err = rmErr
		}
		atomic.StoreInt32(&processCreated, 0)
	}
	b.attached = false
	if b.sigCh != nil {
		signal.Stop(b.sigCh)
	}
	return err
}

func (b *Buffer) header() *header { return headerAt(b.base) }

// Lock acquires the master semaphore; a producer must hold it around any
// sequence of Write* calls that together form one logical event.
func (b *Buffer) Lock() {
	if !b.Attached() {
		return
	}
	_ = semop(b.semID, []sembuf{{SemNum: semMaster, SemOp: -1, SemFlg: unix.SEM_UNDO}})
}

// Unlock releases the master semaphore.
func (b *Buffer) Unlock() {
	if !b.Attached() {
		return
	}
	_ = semop(b.semID, []sembuf{{SemNum: semMaster, SemOp: 1, SemFlg: unix.SEM_UNDO}})
}

// LockLogfile acquires the log-file semaphore (used only by debug logging).
func (b *Buffer) LockLogfile() {
	if !b.Attached() {
		return
	}
	_ = semop(b.semID, []sembuf{{SemNum: semLogFile, SemOp: -1, SemFlg: unix.SEM_UNDO}})
}

// UnlockLogfile releases the log-file semaphore.
func (b *Buffer) UnlockLogfile() {
	if !b.Attached() {
		return
	}
	_ = semop(b.semID, []sembuf{{SemNum: semLogFile, SemOp: 1, SemFlg: unix.SEM_UNDO}})
}

// MarkFull implements the two-semaphore overflow handoff of spec.md §4.2.
// state==true is the producer side (hand off and block until let back in);
// state==false is the consumer side (wake exactly one producer and leave
// the semaphore at its resting value). The consumer's +2 step is
// load-bearing: a single-unit increment would deadlock.
func (b *Buffer) MarkFull(state bool) error {
	if !b.Attached() {
		return errdefs.ErrNotAttached
	}
	if state {
		if err := semop(b.semID, []sembuf{{SemNum: semFull, SemOp: -1}}); err != nil {
			return errors.Wrap(err, "mark_full: signal consumer")
		}
		if err := semop(b.semID, []sembuf{{SemNum: semFull, SemOp: -1}}); err != nil {
			return errors.Wrap(err, "mark_full: wait to be let back in")
		}
		return nil
	}
	if err := semop(b.semID, []sembuf{{SemNum: semFull, SemOp: 2}}); err != nil {
		return errors.Wrap(err, "mark_full: wake producer and reset")
	}
	return nil
}

// WaitUntilFull blocks the consumer until the buffer is full, or returns
// StatusEOF once the direct child has terminated (spec.md §4.2).
func (b *Buffer) WaitUntilFull() (WaitStatus, error) {
	if !b.Attached() {
		return StatusEOF, errdefs.ErrNotAttached
	}
	const pollInterval = 200 * time.Millisecond
	for {
		if atomic.LoadInt32(&b.childTerminated) != 0 {
			return StatusEOF, nil
		}
		ts := unix.NsecToTimespec(pollInterval.Nanoseconds())
		err := semtimedop(b.semID, []sembuf{{SemNum: semFull, SemOp: 0}}, &ts)
		switch {
		case err == nil:
			return StatusFull, nil
		case errors.Is(err, unix.EAGAIN):
			continue
		case errors.Is(err, unix.EINTR):
			// The only signal this process ever receives while parked
			// here is SIGCHLD; treat it the same as the flag check above.
			return StatusEOF, nil
		default:
			return StatusFull, errors.Wrap(err, "wait_until_full")
		}
	}
}

// NextProcessNumber atomically increments and returns the buffer-scoped
// process-number counter. The caller must hold the master lock.
func (b *Buffer) NextProcessNumber() uint32 {
	h := b.header()
	h.nextProcNum++
	return h.nextProcNum
}

func (b *Buffer) payloadCapacity() int {
	return b.size - int(headerSize)
}

// ensureSpace hands off to the consumer and blocks until n more bytes fit,
// per the overflow algorithm of spec.md §4.2.
func (b *Buffer) ensureSpace(n int) error {
	h := b.header()
	if int(h.payloadUsed)+n <= b.payloadCapacity() {
		return nil
	}
	return b.MarkFull(true)
}

func (b *Buffer) appendBytes(p []byte) error {
	if !b.Attached() {
		return errdefs.ErrNotAttached
	}
	if err := b.ensureSpace(len(p)); err != nil {
		return err
	}
	h := b.header()
	dst := unsafe.Slice((*byte)(unsafe.Pointer(payloadAt(b.base)+uintptr(h.payloadUsed))), len(p))
	copy(dst, p)
	h.payloadUsed += uint32(len(p))
	return nil
}

// WriteByte appends a single byte to the payload.
func (b *Buffer) WriteByte(v byte) error {
	return b.appendBytes([]byte{v})
}

// WriteUint32 appends a little-endian 32-bit integer.
func (b *Buffer) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return b.appendBytes(buf[:])
}

// WriteBytes appends a raw byte slice.
func (b *Buffer) WriteBytes(p []byte) error {
	return b.appendBytes(p)
}

// WriteString appends s followed by a terminating zero byte.
func (b *Buffer) WriteString(s string) error {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return b.appendBytes(buf)
}

// Fetch returns a view of the current payload bytes; the caller (always
// the consumer, holding no particular lock since it only runs between
// WaitUntilFull returning and the matching EmptyContent) must not retain
// it past the next EmptyContent call.
func (b *Buffer) Fetch() []byte {
	h := b.header()
	used := int(h.payloadUsed)
	if used == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(payloadAt(b.base))), used)
}

// EmptyContent resets the payload size back to zero.
func (b *Buffer) EmptyContent() {
	b.header().payloadUsed = 0
}

func (b *Buffer) installChildTerminationHandler() {
	b.sigCh = make(chan os.Signal, 1)
	signal.Notify(b.sigCh, unix.SIGCHLD)
	go func() {
		for range b.sigCh {
			atomic.StoreInt32(&b.childTerminated, 1)
		}
	}()
}

// MarkChildTerminated is called directly by the driver once it has
// observed (via wait4/os.Process.Wait) that its direct child exited, so
// WaitUntilFull returns EOF even if the SIGCHLD delivery raced the final
// drain.
func (b *Buffer) MarkChildTerminated() {
	atomic.StoreInt32(&b.childTerminated, 1)
}
