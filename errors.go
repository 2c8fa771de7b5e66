// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

import (
	"errors"
	"fmt"
)

var (
	ErrClosedConn      = errors.New("iochannel: read/write on closed connection")
	ErrClientClosed    = errors.New("iochannel: client is shut down")
	ErrServerClosed    = errors.New("iochannel: server is shut down")
	ErrFrameTooLarge   = errors.New("iochannel: frame payload exceeds maximum size")
	ErrInvalidTopology = errors.New("iochannel: invalid topology")
)

// UnknownPeerError is returned when a peer name is not part of the topology.
// It is the only send-path error callers are expected to handle.
type UnknownPeerError struct {
	Name string
}

func (e *UnknownPeerError) Error() string {
	return fmt.Sprintf("iochannel: unknown peer %q", e.Name)
}

// ConnectionError reports a failed dial, read or write. It never reaches
// Peer.Send callers: the peer parks the message and retries.
type ConnectionError struct {
	Op   string // "dial", "write" or "read"
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("iochannel: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FramingError reports a malformed or over-limit frame. The connection that
// produced it is closed.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("iochannel: framing error: %s: %v", e.Reason, e.Err)
	}
	return "iochannel: framing error: " + e.Reason
}

func (e *FramingError) Unwrap() error { return e.Err }

// IsUnknownPeer reports whether err is, or wraps, an *UnknownPeerError.
func IsUnknownPeer(err error) bool {
	var upe *UnknownPeerError
	return errors.As(err, &upe)
}
