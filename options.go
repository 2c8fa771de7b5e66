// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

import (
	"time"
)

const (
	DefaultWaitInterval     = 5 * time.Second
	DefaultDialTimeout      = 3 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultMaxFrameSize     = 1 << 20  // 1 MiB
	DefaultMaxPayloadLength = 16 << 20 // sanity ceiling on a decoded frame payload
	DefaultMaxMessageSize   = 64 << 20 // bound on a reassembled message
)

// options is shared by Client and Server.
type options struct {
	log            *Logger
	dialTimeout    time.Duration
	writeTimeout   time.Duration
	waitInterval   time.Duration
	maxFrameSize   int
	maxPayloadLen  uint32
	maxMessageSize int
}

func defaultOptions() options {
	return options{
		log:            DefaultLogger,
		dialTimeout:    DefaultDialTimeout,
		writeTimeout:   DefaultWriteTimeout,
		waitInterval:   DefaultWaitInterval,
		maxFrameSize:   DefaultMaxFrameSize,
		maxPayloadLen:  DefaultMaxPayloadLength,
		maxMessageSize: DefaultMaxMessageSize,
	}
}

func newOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = DevNullLogger
	}
	if uint64(o.maxFrameSize) > uint64(o.maxPayloadLen) {
		o.log.Warn("max frame size %d exceeds payload ceiling %d; lowering frame size", o.maxFrameSize, o.maxPayloadLen)
		o.maxFrameSize = int(o.maxPayloadLen)
	}
	return o
}

// Option configures a Client or a Server.
type Option func(o *options)

// WithLogger sets a dedicated Logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithDialTimeout sets the maximum amount of time a dial will wait
// for a connect to complete.
func WithDialTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.dialTimeout = timeout
		}
	}
}

// WithWriteTimeout bounds a single message write, so a stuck remote cannot
// hold a peer forever. Zero disables the deadline.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout >= 0 {
			o.writeTimeout = timeout
		}
	}
}

// WithWaitInterval configures the time to wait between two reconnect
// attempts of a peer holding a pending message.
func WithWaitInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitInterval = d
		}
	}
}

// WithMaxFrameSize bounds the payload carried by one frame. Larger
// messages are fragmented. It is capped by WithMaxPayloadCeiling, and must
// not exceed the ceiling of any receiving server: a frame above the
// receiver's ceiling closes the connection after the write already
// succeeded, so the message is lost.
func WithMaxFrameSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFrameSize = n
		}
	}
}

// WithMaxPayloadCeiling sets the largest payload length a receiver accepts
// in a single frame before treating the stream as corrupt. Every sender's
// WithMaxFrameSize must stay at or below it.
func WithMaxPayloadCeiling(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPayloadLen = n
		}
	}
}

// WithMaxMessageSize bounds the size of a reassembled message.
func WithMaxMessageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxMessageSize = n
		}
	}
}
