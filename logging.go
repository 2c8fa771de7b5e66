// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

// LogLevel orders log records by verbosity. A Logger emits a record when
// its level is at or below the Logger's threshold.
type LogLevel int32

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

var levelNames = [...]string{
	LogLevelError: "ERROR",
	LogLevelWarn:  "WARN",
	LogLevelInfo:  "INFO",
	LogLevelDebug: "DEBUG",
	LogLevelTrace: "TRACE",
}

func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Logger is the leveled logger shared by clients, peers and servers.
// The threshold may be changed while other goroutines log.
type Logger struct {
	out       *log.Logger
	threshold atomic.Int32
}

// NewLogger returns a Logger writing to stderr.
func NewLogger(level LogLevel) *Logger {
	return NewLoggerWithWriter(os.Stderr, level)
}

// NewLoggerWithWriter returns a Logger writing to w.
func NewLoggerWithWriter(w io.Writer, level LogLevel) *Logger {
	l := &Logger{out: log.New(w, "iochannel: ", log.LstdFlags)}
	l.threshold.Store(int32(level))
	return l
}

func (l *Logger) SetLevel(level LogLevel) { l.threshold.Store(int32(level)) }

func (l *Logger) GetLevel() LogLevel { return LogLevel(l.threshold.Load()) }

// IsEnabled reports whether records at level would be written.
func (l *Logger) IsEnabled(level LogLevel) bool {
	return level <= l.GetLevel()
}

func (l *Logger) logf(level LogLevel, format string, args []interface{}) {
	if !l.IsEnabled(level) {
		return
	}
	l.out.Printf("["+level.String()+"] "+format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) { l.logf(LogLevelError, format, args) }
func (l *Logger) Warn(format string, args ...interface{})  { l.logf(LogLevelWarn, format, args) }
func (l *Logger) Info(format string, args ...interface{})  { l.logf(LogLevelInfo, format, args) }
func (l *Logger) Debug(format string, args ...interface{}) { l.logf(LogLevelDebug, format, args) }
func (l *Logger) Trace(format string, args ...interface{}) { l.logf(LogLevelTrace, format, args) }

// Preset loggers. DefaultLogger backs clients and servers built without
// WithLogger; WithLogger(nil) selects DevNullLogger.
var (
	DevNullLogger = NewLoggerWithWriter(io.Discard, LogLevelError)
	DefaultLogger = NewLogger(LogLevelWarn)
	DebugLogger   = NewLogger(LogLevelDebug)
)
