/*
 * Copyright (c) 2024. CFS-Trace Authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package cfslog configures the driver's own operational logging. This is
// distinct from the per-process debug trace log of spec.md §4.2/§4.6,
// which every traced process writes directly under the log-file
// semaphore; cfslog only covers the driver's "what am I doing" log.
package cfslog

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFileName = "cfsdriver.log"

// RotateArgs configures lumberjack's rotation of the driver's log file.
type RotateArgs struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	LocalTime  bool
	Compress   bool
}

// SetUp installs a logrus formatter/level/output for the driver process.
func SetUp(level string, toStdout bool, logDir string, rotate *RotateArgs) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "parse log level")
	}
	logrus.SetLevel(lvl)

	if toStdout {
		logrus.SetOutput(os.Stdout)
	} else {
		if rotate == nil {
			return errors.New("rotate args required when not logging to stdout")
		}
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return errors.Wrapf(err, "create log dir %s", logDir)
		}
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   filepath.Join(logDir, defaultLogFileName),
			MaxSize:    rotate.MaxSizeMB,
			MaxBackups: rotate.MaxBackups,
			MaxAge:     rotate.MaxAgeDays,
			LocalTime:  rotate.LocalTime,
			Compress:   rotate.Compress,
		})
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.RFC3339Nano,
		FullTimestamp:   true,
	})
	return nil
}
