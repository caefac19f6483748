/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package traceevent defines the wire-format record kinds and the selection
// rules (read/write/modify, file/dir) used to turn an intercepted call into
// a trace record.
package traceevent

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Kind is the one-byte record tag defined in spec.md §3/§6.
type Kind uint8

const (
	Register Kind = 1
	Write    Kind = 2
	Read     Kind = 3
	Modify   Kind = 4
	Delete   Kind = 5
	Rename   Kind = 6
	NewLink  Kind = 7
	NewProg  Kind = 8
	DirWrite Kind = 9
	DirRead  Kind = 10
	DirModify Kind = 11
	DirDelete Kind = 12
)

// TraceMagic and TraceVersion are the first two words of a decompressed
// trace stream (spec.md §6). The spec treats both as required and
// definitive, resolving the corresponding Open Ambiguity of spec.md §9.
const (
	TraceMagic   uint32 = 0xBEEFFEED
	TraceVersion uint32 = 1
)

// AsDir maps a file-kind constant onto its directory variant, used when
// IsDirectory(path) is true at event time (spec.md §4.4).
func (k Kind) AsDir() Kind {
	switch k {
	case Write:
		return DirWrite
	case Read:
		return DirRead
	case Modify:
		return DirModify
	case Delete:
		return DirDelete
	default:
		return k
	}
}

// OpenFlagKind implements the open/openat classification rule of spec.md
// §4.4: any of O_APPEND|O_CREAT|O_WRONLY set selects WRITE; otherwise
// O_RDWR selects MODIFY; otherwise READ.
func OpenFlagKind(flags int, oAppend, oCreat, oWronly, oRdwr int) Kind {
	if flags&(oAppend|oCreat|oWronly) != 0 {
		return Write
	}
	if flags&oRdwr != 0 {
		return Modify
	}
	return Read
}

// FopenModeKind implements the fopen-mode-string classification rule of
// spec.md §4.4.
func FopenModeKind(mode string) Kind {
	switch mode {
	case "r", "rb":
		return Read
	case "r+", "rb+", "r+b":
		return Modify
	default:
		return Write
	}
}

// Writer is the subset of tracebuf.Buffer that the encoder needs: a
// lock/unlock pair around one logical event plus the typed write
// primitives of spec.md §4.2.
type Writer interface {
	Lock()
	Unlock()
	WriteByte(b byte) error
	WriteUint32(v uint32) error
	WriteBytes(b []byte) error
	WriteString(s string) error
}

// Encode writes one single-path event: kind, process number, path.
func Encode(w Writer, kind Kind, procNum uint32, path string) error {
	w.Lock()
	defer w.Unlock()
	return encodeHeaderAndPath(w, kind, procNum, path)
}

// EncodeTwoPath writes a two-path event (RENAME, NEW_LINK): kind, process
// number, first path, second path.
func EncodeTwoPath(w Writer, kind Kind, procNum uint32, path1, path2 string) error {
	w.Lock()
	defer w.Unlock()
	if err := writeHeader(w, kind, procNum); err != nil {
		return err
	}
	if err := w.WriteString(path1); err != nil {
		return errors.Wrap(err, "write first path")
	}
	if err := w.WriteString(path2); err != nil {
		return errors.Wrap(err, "write second path")
	}
	return nil
}

// NewProgram is the NEW_PROGRAM record's fields, per spec.md §6: parent
// process number, cwd, argv, envp, terminated by an explicit empty string
// (the later-variant resolution of the Open Ambiguity in spec.md §9).
type NewProgram struct {
	ProcessNumber uint32
	ParentNumber  uint32
	Cwd           string
	Argv          []string
	Envp          []string
}

// Encode writes the NEW_PROGRAM record.
func (p NewProgram) Encode(w Writer) error {
	w.Lock()
	defer w.Unlock()

	if err := writeHeader(w, NewProg, p.ProcessNumber); err != nil {
		return err
	}
	if err := w.WriteUint32(p.ParentNumber); err != nil {
		return errors.Wrap(err, "write parent number")
	}
	if err := w.WriteString(p.Cwd); err != nil {
		return errors.Wrap(err, "write cwd")
	}
	if err := w.WriteUint32(uint32(len(p.Argv))); err != nil {
		return errors.Wrap(err, "write argc")
	}
	for _, a := range p.Argv {
		if err := w.WriteString(a); err != nil {
			return errors.Wrap(err, "write argv entry")
		}
	}
	for _, e := range p.Envp {
		if err := w.WriteString(e); err != nil {
			return errors.Wrap(err, "write envp entry")
		}
	}
	return w.WriteString("")
}

func encodeHeaderAndPath(w Writer, kind Kind, procNum uint32, path string) error {
	if err := writeHeader(w, kind, procNum); err != nil {
		return err
	}
	if err := w.WriteString(path); err != nil {
		return errors.Wrap(err, "write path")
	}
	return nil
}

func writeHeader(w Writer, kind Kind, procNum uint32) error {
	if err := w.WriteByte(byte(kind)); err != nil {
		return errors.Wrap(err, "write kind")
	}
	if err := w.WriteUint32(procNum); err != nil {
		return errors.Wrap(err, "write process number")
	}
	return nil
}

// WriteTraceHeader writes the magic + version words that open a
// decompressed trace stream (spec.md §6).
func WriteTraceHeader(w io.Writer) error {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], TraceMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], TraceVersion)
	_, err := w.Write(hdr[:])
	return err
}
