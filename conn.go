// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Conn carries framed messages over one byte stream. Writes are serialized;
// reads are expected from a single goroutine.
type Conn struct {
	id     string
	rw     net.Conn
	r      *bufio.Reader
	remote string

	ceiling      uint32
	asm          *reassembler
	writeTimeout time.Duration

	wmu    sync.Mutex
	closed int32

	onCloseCB func(c *Conn)
}

// newConn wraps rw. onClose, when non-nil, is called exactly once when the
// connection transitions to closed.
func newConn(rw net.Conn, o *options, onClose func(c *Conn)) *Conn {
	remote := ""
	if addr := rw.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return &Conn{
		id:           uuid.NewString(),
		rw:           rw,
		r:            bufio.NewReader(rw),
		remote:       remote,
		ceiling:      o.maxPayloadLen,
		asm:          newReassembler(o.maxMessageSize),
		writeTimeout: o.writeTimeout,
		onCloseCB:    onClose,
	}
}

// Dial opens a connection to node, bounded by timeout and ctx.
func Dial(ctx context.Context, node NodeDescriptor, timeout time.Duration, opts ...Option) (*Conn, error) {
	o := newOptions(opts)
	return dial(ctx, node, timeout, &o, nil)
}

func dial(ctx context.Context, node NodeDescriptor, timeout time.Duration, o *options, onClose func(c *Conn)) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	rw, err := d.DialContext(ctx, "tcp", node.Addr())
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Addr: node.Addr(), Err: err}
	}
	if rw == nil {
		return nil, &ConnectionError{Op: "dial", Addr: node.Addr(), Err: fmt.Errorf("got a nil dial-conn")}
	}
	return newConn(rw, o, onClose), nil
}

// ID returns a unique identifier of the connection, used in logs.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the address of the other end.
func (c *Conn) RemoteAddr() string { return c.remote }

// SendMessage fragments msg into frames of at most maxFrameSize payload
// bytes and writes them with a single vectored write.
func (c *Conn) SendMessage(msg Message, maxFrameSize int) error {
	frames, err := EncodeFrames(msg.Header, msg.Payload, maxFrameSize)
	if err != nil {
		return err
	}
	return c.sendFrames(frames)
}

func (c *Conn) sendFrames(frames []Frame) error {
	if c.Closed() {
		return ErrClosedConn
	}

	var bufs net.Buffers
	for _, f := range frames {
		bufs = append(bufs, f.buffers()...)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.writeTimeout > 0 {
		c.rw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := bufs.WriteTo(c.rw); err != nil {
		c.SetClosed()
		return &ConnectionError{Op: "write", Addr: c.remote, Err: err}
	}
	return nil
}

// RecvMessage blocks until a complete, reassembled message has been read.
// Any error closes the connection.
func (c *Conn) RecvMessage() (Message, error) {
	for {
		if c.Closed() {
			return Message{}, ErrClosedConn
		}

		f, err := ReadFrame(c.r, c.ceiling)
		if err != nil {
			c.SetClosed()
			var fe *FramingError
			if errors.As(err, &fe) {
				return Message{}, err
			}
			if errors.Is(err, io.EOF) {
				return Message{}, io.EOF
			}
			return Message{}, &ConnectionError{Op: "read", Addr: c.remote, Err: err}
		}

		msg, done, err := c.asm.add(f)
		if err != nil {
			c.SetClosed()
			return Message{}, err
		}
		if done {
			return msg, nil
		}
	}
}

// awaitClose blocks until the other end closes the stream or the connection
// is closed locally. Outbound connections never receive data, so anything
// read is discarded. Watching for EOF lets a peer notice a restarted server
// before its next write lands in a dead socket.
func (c *Conn) awaitClose() {
	var buf [512]byte
	for {
		if _, err := c.r.Read(buf[:]); err != nil {
			c.SetClosed()
			return
		}
	}
}

// Close closes the underlying stream. It is safe to call more than once.
func (c *Conn) Close() error {
	c.SetClosed()
	return nil
}

// SetClosed marks the connection closed, closes the stream and notifies the
// owner once.
func (c *Conn) SetClosed() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.rw.Close()
		if c.onCloseCB != nil {
			c.onCloseCB(c)
		}
	}
}

func (c *Conn) Closed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}
