/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package traceevent

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter is a minimal in-memory Writer for exercising the encoder
// without a real tracebuf.Buffer.
type fakeWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (f *fakeWriter) Lock()   { f.mu.Lock() }
func (f *fakeWriter) Unlock() { f.mu.Unlock() }
func (f *fakeWriter) WriteByte(b byte) error {
	return f.buf.WriteByte(b)
}
func (f *fakeWriter) WriteUint32(v uint32) error {
	var b [4]byte
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	_, err := f.buf.Write(b[:])
	return err
}
func (f *fakeWriter) WriteBytes(b []byte) error {
	_, err := f.buf.Write(b)
	return err
}
func (f *fakeWriter) WriteString(s string) error {
	if _, err := f.buf.WriteString(s); err != nil {
		return err
	}
	return f.buf.WriteByte(0)
}

func TestEncodeDecodeFileWrite(t *testing.T) {
	A := assert.New(t)

	fw := &fakeWriter{}
	require.NoError(t, Encode(fw, Write, 3, "/tmp/x"))

	dec := NewDecoder(&fw.buf)
	rec, err := dec.Next()
	require.NoError(t, err)
	A.Equal(Write, rec.Kind)
	A.Equal(uint32(3), rec.ProcessNumber)
	A.Equal("/tmp/x", rec.Path)

	_, err = dec.Next()
	A.Equal(io.EOF, err)
}

func TestEncodeDecodeRename(t *testing.T) {
	A := assert.New(t)

	fw := &fakeWriter{}
	require.NoError(t, EncodeTwoPath(fw, Rename, 1, "/home/u/p/a", "/home/u/p/b"))

	dec := NewDecoder(&fw.buf)
	rec, err := dec.Next()
	require.NoError(t, err)
	A.Equal(Rename, rec.Kind)
	A.Equal("/home/u/p/a", rec.Path)
	A.Equal("/home/u/p/b", rec.Path2)
}

func TestEncodeDecodeNewProgram(t *testing.T) {
	A := assert.New(t)

	fw := &fakeWriter{}
	np := NewProgram{
		ProcessNumber: 1,
		ParentNumber:  0,
		Cwd:           "/home/u/p",
		Argv:          []string{"/bin/sh", "-c", "echo hi"},
		Envp:          []string{"PATH=/bin", "CFS_ID=42"},
	}
	require.NoError(t, np.Encode(fw))

	dec := NewDecoder(&fw.buf)
	rec, err := dec.Next()
	require.NoError(t, err)
	A.Equal(NewProg, rec.Kind)
	require.NotNil(t, rec.Program)
	A.Equal(uint32(0), rec.Program.ParentNumber)
	A.Equal("/home/u/p", rec.Program.Cwd)
	A.Equal([]string{"/bin/sh", "-c", "echo hi"}, rec.Program.Argv)
	A.Equal([]string{"PATH=/bin", "CFS_ID=42"}, rec.Program.Envp)
}

func TestTraceHeaderRoundtrip(t *testing.T) {
	A := assert.New(t)

	var buf bytes.Buffer
	require.NoError(t, WriteTraceHeader(&buf))
	A.NoError(ReadTraceHeader(&buf))
}

func TestOpenFlagKind(t *testing.T) {
	A := assert.New(t)
	const (
		oRdonly = 0x0
		oWronly = 0x1
		oRdwr   = 0x2
		oCreat  = 0x40
		oAppend = 0x400
	)

	A.Equal(Write, OpenFlagKind(oCreat|oWronly, oAppend, oCreat, oWronly, oRdwr))
	A.Equal(Read, OpenFlagKind(oRdonly, oAppend, oCreat, oWronly, oRdwr))
	A.Equal(Modify, OpenFlagKind(oRdwr, oAppend, oCreat, oWronly, oRdwr))
}

func TestFopenModeKind(t *testing.T) {
	A := assert.New(t)
	A.Equal(Read, FopenModeKind("r"))
	A.Equal(Read, FopenModeKind("rb"))
	A.Equal(Modify, FopenModeKind("r+"))
	A.Equal(Modify, FopenModeKind("rb+"))
	A.Equal(Modify, FopenModeKind("r+b"))
	A.Equal(Write, FopenModeKind("w"))
	A.Equal(Write, FopenModeKind("a"))
}

func TestAsDir(t *testing.T) {
	A := assert.New(t)
	A.Equal(DirWrite, Write.AsDir())
	A.Equal(DirRead, Read.AsDir())
	A.Equal(DirModify, Modify.AsDir())
	A.Equal(DirDelete, Delete.AsDir())
	A.Equal(Rename, Rename.AsDir())
}
