//go:build linux

/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package driver implements spec.md §4.7: the top-level process that
// creates the trace buffer, launches the traced command with the
// interposer library preloaded, drains the buffer into a compressed
// trace file, and tears everything down once the child exits. Grounded
// on cmd/containerd-nydus-grpc/app/snapshotter.Start's
// create-resource/serve/signal-teardown shape, with the fork/exec and
// drain loop taken from
// original_source/ComponentFS/priv/src/cfs_main/cfs_main.c.
package driver

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	units "github.com/docker/go-units"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nydus-tracer/cfs-trace/internal/errdefs"
	"github.com/nydus-tracer/cfs-trace/internal/flags"
	"github.com/nydus-tracer/cfs-trace/pkg/envprop"
	"github.com/nydus-tracer/cfs-trace/pkg/sourcewalk"
	"github.com/nydus-tracer/cfs-trace/pkg/traceevent"
	"github.com/nydus-tracer/cfs-trace/pkg/tracebuf"
)

const defaultLibraryName = "libcfstrace.so"

// Run executes the full driver lifecycle of spec.md §4.7 and blocks until
// the traced command exits and the trace file is fully flushed.
func Run(ctx context.Context, args *flags.Args, command []string) error {
	if _, nested := os.LookupEnv("CFS_ID"); nested {
		return errdefs.ErrNestedTracing
	}

	if args.DebugLogFile != "" {
		if err := verifyWritable(args.DebugLogFile); err != nil {
			return errors.Wrap(err, "debug log file")
		}
	}

	traceFile, err := os.OpenFile(args.TraceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "open trace output file")
	}

	libPath, err := resolveLibraryPath(args.LibraryPath)
	if err != nil {
		_ = traceFile.Close()
		return errors.Wrap(err, "resolve preload library")
	}

	// runID correlates this invocation's log lines; it has no bearing on
	// CFS_ID, which must stay the literal shmget-assigned id so a traced
	// process's shmat(CFS_ID) resolves to the right region.
	runID := xid.New().String()
	log := logrus.WithField("run_id", runID)

	buf, err := tracebuf.Create(0)
	if err != nil {
		_ = traceFile.Close()
		return errors.Wrap(err, "create trace buffer")
	}
	log.Infof("driver: trace buffer ready, region size %s", units.HumanSize(float64(tracebuf.DefaultRegionSize)))

	gz := gzip.NewWriter(traceFile)
	if err := traceevent.WriteTraceHeader(gz); err != nil {
		_ = gz.Close()
		_ = traceFile.Close()
		_ = buf.Detach()
		return errors.Wrap(err, "write trace header")
	}

	if args.ScanSources {
		buf.Lock()
		procNum := buf.NextProcessNumber()
		buf.Unlock()
		if err := sourcewalk.Walk(buf, procNum, "."); err != nil {
			log.WithError(err).Warn("driver: initial source-tree walk failed")
		}
	}

	cmd, err := buildChildCommand(command, buf.ID(), libPath, args)
	if err != nil {
		_ = gz.Close()
		_ = traceFile.Close()
		_ = buf.Detach()
		return errors.Wrap(err, "prepare child command")
	}

	if err := cmd.Start(); err != nil {
		_ = gz.Close()
		_ = traceFile.Close()
		_ = buf.Detach()
		return errors.Wrap(err, "start traced command")
	}
	log.Infof("driver: traced command started, pid %d", cmd.Process.Pid)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		waitErr := cmd.Wait()
		buf.MarkChildTerminated()
		return waitErr
	})
	g.Go(func() error {
		return drain(buf, gz, log)
	})

	childErr := g.Wait()

	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip trace stream")
	}
	if err := traceFile.Close(); err != nil {
		return errors.Wrap(err, "close trace output file")
	}
	if err := buf.Detach(); err != nil {
		return errors.Wrap(err, "detach trace buffer")
	}

	if childErr != nil {
		var exitErr *exec.ExitError
		if errors.As(childErr, &exitErr) {
			return nil // the traced command's own exit status is not the driver's concern
		}
		return errors.Wrap(childErr, "traced command")
	}
	return nil
}

// drain implements spec.md §4.7 step 7: the consumer's
// wait/fetch/write/empty/unblock cycle, until the buffer reports EOF.
func drain(buf *tracebuf.Buffer, w *gzip.Writer, log *logrus.Entry) error {
	var drained int64
	for {
		status, err := buf.WaitUntilFull()
		if err != nil {
			return errors.Wrap(err, "wait_until_full")
		}
		if payload := buf.Fetch(); len(payload) > 0 {
			if _, err := w.Write(payload); err != nil {
				return errors.Wrap(err, "write trace payload")
			}
			drained += int64(len(payload))
		}
		buf.EmptyContent()
		if status == tracebuf.StatusEOF {
			log.Infof("driver: drained %s from trace buffer", units.HumanSize(float64(drained)))
			return nil
		}
		if err := buf.MarkFull(false); err != nil {
			return errors.Wrap(err, "mark_full(false)")
		}
	}
}

func buildChildCommand(command []string, bufferID int, libPath string, args *flags.Args) (*exec.Cmd, error) {
	if len(command) == 0 {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
		command = []string{shell}
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		return nil, errors.Wrapf(err, "locate %s", command[0])
	}

	cmd := exec.Command(path, command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = envprop.Propagate(os.Environ(), envprop.State{
		BufferID:     bufferID,
		DebugLevel:   args.DebugLevel,
		DebugLogPath: args.DebugLogFile,
		SavedPreload: libPath,
	})
	return cmd, nil
}

func verifyWritable(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

// resolveLibraryPath returns the absolute path to libcfstrace.so: the
// explicit flag value if given, otherwise a file of that name next to
// this binary.
func resolveLibraryPath(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	self, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "determine own executable path")
	}
	return filepath.Join(filepath.Dir(self), defaultLibraryName), nil
}
