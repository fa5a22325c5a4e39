// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger prints diagnostic messages on standard error.
package logger

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const actionPrefix = "==> "

var (
	mu     sync.Mutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *zap.SugaredLogger {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: " ",
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}

// SetVerbose toggles debug messages
func SetVerbose(verbose bool) {
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

// SetOutput redirects all messages to w
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
}

func current() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Actionf prints a formatted message announcing a step
func Actionf(format string, args ...interface{}) {
	current().Infof(actionPrefix+format, args...)
}

// Debugf prints a formatted message only in verbose mode
func Debugf(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

// Fatal prints an error message and exits
func Fatal(args ...interface{}) {
	current().Fatal(args...)
}
