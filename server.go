// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Server accepts connections from peers and hands every reassembled
// message to the registered callbacks.
type Server struct {
	local NodeDescriptor
	opts  options
	log   *Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	started  bool
	closed   bool

	cbmu      sync.RWMutex
	callbacks []NotifyCallback

	ctx    context.Context
	cancel context.CancelFunc
	grp    *errgroup.Group
}

// NewServer creates a server for the local node of topology. Call Start to
// begin accepting connections.
func NewServer(topology *Topology, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	o := newOptions(opts)
	return &Server{
		local:  topology.Local(),
		opts:   o,
		log:    o.log,
		conns:  make(map[*Conn]struct{}),
		ctx:    ctx,
		cancel: cancel,
		grp:    new(errgroup.Group),
	}
}

// Start creates a server for the local node of topology and starts it.
func Start(topology *Topology, opts ...Option) (*Server, error) {
	s := NewServer(topology, opts...)
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start binds the local port and spawns the accept loop.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrServerClosed
	case s.started:
		return fmt.Errorf("iochannel: server %s already started", s.local.Name)
	}

	var lc net.ListenConfig
	l, err := lc.Listen(s.ctx, "tcp", s.local.Addr())
	if err != nil {
		return fmt.Errorf("iochannel: could not listen on %q: %w", s.local.Addr(), err)
	}
	s.listener = l
	s.started = true
	s.grp.Go(s.accept)

	s.log.Info("server %s listening on %s", s.local.Name, l.Addr())
	return nil
}

// Addr returns the listener's address, or nil if the server isn't started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Local returns the descriptor the server was built from.
func (s *Server) Local() NodeDescriptor { return s.local }

func (s *Server) accept() error {
	for {
		rw, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("server %s: accept: %v", s.local.Name, err)
			select {
			case <-s.ctx.Done():
				return nil
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		conn := newConn(rw, &s.opts, s.rmConn)
		if !s.addConn(conn) {
			conn.Close()
			return nil
		}
		s.log.Debug("server %s: accepted %s (conn %s)", s.local.Name, conn.RemoteAddr(), conn.ID())
		s.grp.Go(func() error {
			s.serve(conn)
			return nil
		})
	}
}

func (s *Server) addConn(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) rmConn(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// Connections returns the number of open inbound connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// serve is the receive loop of one inbound connection.
func (s *Server) serve(c *Conn) {
	defer c.Close()
	for {
		msg, err := c.RecvMessage()
		if err != nil {
			var fe *FramingError
			switch {
			case errors.As(err, &fe):
				s.log.Warn("server %s: closing %s: %v", s.local.Name, c.RemoteAddr(), err)
			case errors.Is(err, io.EOF), errors.Is(err, ErrClosedConn):
				s.log.Debug("server %s: connection %s closed", s.local.Name, c.ID())
			default:
				s.log.Debug("server %s: connection %s: %v", s.local.Name, c.ID(), err)
			}
			return
		}
		s.dispatch(msg)
	}
}

// RegisterCallback adds cb to the callbacks invoked for every message
// received from now on. The same callback may be registered several times.
func (s *Server) RegisterCallback(cb NotifyCallback) {
	if cb == nil {
		return
	}
	s.cbmu.Lock()
	defer s.cbmu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// dispatch invokes the callbacks in registration order on a snapshot of
// the callback list.
func (s *Server) dispatch(msg Message) {
	s.cbmu.RLock()
	cbs := make([]NotifyCallback, len(s.callbacks))
	copy(cbs, s.callbacks)
	s.cbmu.RUnlock()

	for _, cb := range cbs {
		s.invoke(cb, msg)
	}
}

func (s *Server) invoke(cb NotifyCallback, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("server %s: callback %T panicked on %q: %v", s.local.Name, cb, msg.Header, r)
		}
	}()
	cb.DataReceived(msg.Header, msg.Payload)
}

// Shutdown stops accepting, closes every inbound connection and waits for
// the receive loops to exit. It must not be called from a callback.
// Shutdown is idempotent.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	l := s.listener
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	started := s.started
	s.mu.Unlock()

	s.cancel()

	var err error
	if l != nil {
		if e := l.Close(); e != nil && !errors.Is(e, net.ErrClosed) {
			err = e
		}
	}
	for _, c := range conns {
		c.Close()
	}
	if started {
		s.grp.Wait()
	}

	s.cbmu.Lock()
	s.callbacks = nil
	s.cbmu.Unlock()

	s.log.Info("server %s stopped", s.local.Name)
	return err
}
