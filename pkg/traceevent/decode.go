/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package traceevent

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Record is a single decoded trace entry, used by tests and by any
// downstream tool that wants to sanity-check a drained stream against the
// §6 grammar without pulling in the full build-graph reconstruction logic
// (out of scope per spec.md §1).
type Record struct {
	Kind          Kind
	ProcessNumber uint32
	Path          string
	Path2         string       // RENAME, NEW_LINK
	Program       *NewProgram  // NEW_PROGRAM only
}

// Decoder reads records sequentially from a decompressed trace stream,
// after the caller has consumed the magic/version header via
// ReadTraceHeader.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r for record-at-a-time decoding.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// ReadTraceHeader validates and consumes the magic + version words.
func ReadTraceHeader(r io.Reader) error {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return errors.Wrap(err, "read trace header")
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	version := binary.LittleEndian.Uint32(hdr[4:8])
	if magic != TraceMagic {
		return errors.Errorf("bad trace magic: 0x%08X", magic)
	}
	if version != TraceVersion {
		return errors.Errorf("unsupported trace version: %d", version)
	}
	return nil
}

// Next decodes the next record, or returns io.EOF when the stream is
// exhausted cleanly.
func (d *Decoder) Next() (*Record, error) {
	kindByte, err := d.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "read kind")
	}

	procNum, err := d.readUint32()
	if err != nil {
		return nil, errors.Wrap(err, "read process number")
	}

	rec := &Record{Kind: Kind(kindByte), ProcessNumber: procNum}

	switch rec.Kind {
	case Register, Write, Read, Modify, Delete, DirWrite, DirRead, DirModify, DirDelete:
		rec.Path, err = d.readString()
	case Rename, NewLink:
		if rec.Path, err = d.readString(); err == nil {
			rec.Path2, err = d.readString()
		}
	case NewProg:
		rec.Program, err = d.readNewProgram(procNum)
	default:
		return nil, errors.Errorf("unknown record kind %d", kindByte)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *Decoder) readNewProgram(procNum uint32) (*NewProgram, error) {
	parent, err := d.readUint32()
	if err != nil {
		return nil, errors.Wrap(err, "read parent number")
	}
	cwd, err := d.readString()
	if err != nil {
		return nil, errors.Wrap(err, "read cwd")
	}
	argc, err := d.readUint32()
	if err != nil {
		return nil, errors.Wrap(err, "read argc")
	}
	argv := make([]string, 0, argc)
	for i := uint32(0); i < argc; i++ {
		s, err := d.readString()
		if err != nil {
			return nil, errors.Wrap(err, "read argv entry")
		}
		argv = append(argv, s)
	}
	var envp []string
	for {
		s, err := d.readString()
		if err != nil {
			return nil, errors.Wrap(err, "read envp entry")
		}
		if s == "" {
			break
		}
		envp = append(envp, s)
	}
	return &NewProgram{
		ProcessNumber: procNum,
		ParentNumber:  parent,
		Cwd:           cwd,
		Argv:          argv,
		Envp:          envp,
	}, nil
}

func (d *Decoder) readUint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (d *Decoder) readString() (string, error) {
	s, err := d.r.ReadString(0)
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}
