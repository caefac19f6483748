/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/nydus-tracer/cfs-trace/internal/cfslog"
	"github.com/nydus-tracer/cfs-trace/internal/errdefs"
	"github.com/nydus-tracer/cfs-trace/internal/flags"
	"github.com/nydus-tracer/cfs-trace/pkg/driver"
	"github.com/nydus-tracer/cfs-trace/version"
)

func main() {
	f := flags.NewFlags()
	app := &cli.App{
		Name:        "cfsdriver",
		Usage:       "trace a command's file-system access into a compressed trace file",
		Version:     version.Version,
		Flags:       f.F,
		HideVersion: true,
		Action: func(c *cli.Context) error {
			if f.Args.PrintVersion {
				fmt.Println("Version:    ", version.Version)
				fmt.Println("Revision:   ", version.Revision)
				fmt.Println("Go version: ", version.GoVersion)
				fmt.Println("Build time: ", version.BuildTimestamp)
				return nil
			}

			logDir, err := os.Getwd()
			if err != nil {
				return errors.Wrap(err, "determine working directory")
			}
			rotate := &cfslog.RotateArgs{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				LocalTime:  true,
				Compress:   true,
			}
			if err := cfslog.SetUp(f.Args.LogLevel, f.Args.LogToStdout, logDir, rotate); err != nil {
				return errors.Wrap(err, "set up logging")
			}

			logrus.Infof("cfsdriver starting, pid %d, version %s", os.Getpid(), version.Version)

			return driver.Run(context.Background(), f.Args, c.Args().Slice())
		},
	}

	if err := app.Run(os.Args); err != nil {
		if errdefs.IsNestedTracing(err) {
			logrus.Fatal("refusing to run: already running under a tracer (CFS_ID is set)")
		}
		logrus.WithError(err).Fatal("cfsdriver failed")
	}
}
