/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package flags

import (
	"github.com/urfave/cli/v2"
)

const (
	DefaultTraceFile = "cfs.trace"
	DefaultLogLevel  = "info"
)

// Args mirrors spec.md §6's CLI surface: `driver [-h] [-o trace-file]
// [-l log-file] [-d 0|1|2] [-r] [command args...]`.
type Args struct {
	TraceFile    string
	DebugLogFile string
	DebugLevel   int
	ScanSources  bool
	LibraryPath  string
	LogLevel     string
	LogToStdout  bool
	PrintVersion bool
}

// Flags bundles the destination struct with the urfave/cli flag slice that
// writes into it, the same shape as the teacher's internal/flags.Flags.
type Flags struct {
	Args *Args
	F    []cli.Flag
}

func buildFlags(args *Args) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "o",
			Aliases:     []string{"output"},
			Usage:       "path to the compressed trace output file",
			Value:       DefaultTraceFile,
			Destination: &args.TraceFile,
		},
		&cli.StringFlag{
			Name:        "l",
			Aliases:     []string{"log-file"},
			Usage:       "path to the plain-text debug trace log",
			Destination: &args.DebugLogFile,
		},
		&cli.IntFlag{
			Name:        "d",
			Aliases:     []string{"debug"},
			Usage:       "debug level for interposed processes, 0-2",
			Destination: &args.DebugLevel,
		},
		&cli.BoolFlag{
			Name:        "r",
			Aliases:     []string{"scan-sources"},
			Usage:       "perform an initial source-tree walk, registering pre-existing files",
			Destination: &args.ScanSources,
		},
		&cli.StringFlag{
			Name:        "preload-lib",
			Usage:       "absolute path to libcfstrace.so; defaults to a file named libcfstrace.so next to this binary",
			Destination: &args.LibraryPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "driver's own operational log level",
			Value:       DefaultLogLevel,
			Destination: &args.LogLevel,
		},
		&cli.BoolFlag{
			Name:        "log-to-stdout",
			Usage:       "print driver log messages to standard output",
			Destination: &args.LogToStdout,
		},
		&cli.BoolFlag{
			Name:        "version",
			Usage:       "print version and build information",
			Destination: &args.PrintVersion,
		},
	}
}

// NewFlags builds a fresh Args/Flags pair.
func NewFlags() *Flags {
	var args Args
	return &Flags{
		Args: &args,
		F:    buildFlags(&args),
	}
}
