// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glycerine/idem"
)

// DefaultHeader is the header used by Peer.SendMessage.
const DefaultHeader = "message"

// PeerState describes the outbound side of a peer.
type PeerState int

const (
	PeerIdle PeerState = iota
	PeerConnecting
	PeerConnected
	PeerRetrying
)

func (s PeerState) String() string {
	switch s {
	case PeerIdle:
		return "idle"
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerRetrying:
		return "retrying"
	default:
		return fmt.Sprintf("PeerState(%d)", int(s))
	}
}

// Peer is the sending handle for one configured remote node. It owns at
// most one outbound connection and a single pending message that is
// retried in the background until delivered or overwritten.
type Peer struct {
	name   string
	target NodeDescriptor
	opts   *options
	log    *Logger

	wait      atomic.Int64 // time.Duration between retries
	nextRetry atomic.Int64 // unix nanos of the next armed retry

	mu      sync.Mutex // serializes sends; guards conn, pending, state, closed
	conn    *Conn
	pending *Message
	state   PeerState
	closed  bool

	ctx      context.Context // aborts dials in progress on Close
	cancel   context.CancelFunc
	wake     chan struct{}
	halt     *idem.Halter
	watchers sync.WaitGroup
}

func newPeer(target NodeDescriptor, o *options, wait time.Duration) *Peer {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Peer{
		name:   target.Name,
		target: target,
		opts:   o,
		log:    o.log,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		halt:   idem.NewHalterNamed(fmt.Sprintf("Peer(%v)", target.Name)),
	}
	p.wait.Store(int64(wait))
	go p.retryLoop()
	return p
}

// Name returns the configured peer name.
func (p *Peer) Name() string { return p.name }

// Target returns the descriptor the peer sends to.
func (p *Peer) Target() NodeDescriptor { return p.target }

// WaitInterval returns the delay between two reconnect attempts.
func (p *Peer) WaitInterval() time.Duration {
	return time.Duration(p.wait.Load())
}

// SetWaitInterval changes the reconnect delay. The retry timer is re-armed
// with the new value.
func (p *Peer) SetWaitInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.wait.Store(int64(d))
	p.wakeRetry()
}

// wakeRetry re-arms the retry timer for one full wait interval from now.
func (p *Peer) wakeRetry() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// State reports the current connection state.
func (p *Peer) State() PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PeerConnected && (p.conn == nil || p.conn.Closed()) {
		return PeerIdle
	}
	return p.state
}

// Pending returns a copy of the message waiting for redelivery, if any.
func (p *Peer) Pending() (Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return Message{}, false
	}
	return *p.pending, true
}

// SendMessage sends text under DefaultHeader.
func (p *Peer) SendMessage(text string) error {
	return p.Send(DefaultHeader, []byte(text))
}

// Send delivers one message to the peer. Transport failures are not
// reported: the message is parked as the peer's pending message, replacing
// any earlier one, and retried by the background loop. Send only fails for
// a header that cannot be encoded or once the owning client is shut down.
func (p *Peer) Send(header string, payload []byte) error {
	frames, err := EncodeFrames(header, payload, p.opts.maxFrameSize)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClientClosed
	}

	if err := p.writeLocked(frames); err != nil {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		p.pending = &Message{Header: header, Payload: buf}
		p.state = PeerRetrying
		p.log.Debug("peer %s: send of %q deferred: %v", p.name, header, err)
		p.wakeRetry()
		return nil
	}
	p.pending = nil
	return nil
}

// writeLocked opens a connection if needed and writes frames on it.
// On failure the connection is dropped. p.mu must be held.
func (p *Peer) writeLocked(frames []Frame) error {
	if p.conn == nil || p.conn.Closed() {
		p.conn = nil
		p.state = PeerConnecting
		conn, err := dial(p.ctx, p.target, p.opts.dialTimeout, p.opts, nil)
		if err != nil {
			p.state = PeerIdle
			return err
		}
		p.log.Debug("peer %s: connected to %s (conn %s)", p.name, p.target.Addr(), conn.ID())
		p.conn = conn
		p.watchers.Add(1)
		go func() {
			defer p.watchers.Done()
			conn.awaitClose()
			p.log.Debug("peer %s: connection %s closed", p.name, conn.ID())
		}()
	}

	if err := p.conn.sendFrames(frames); err != nil {
		p.conn.Close()
		p.conn = nil
		p.state = PeerIdle
		return err
	}
	p.state = PeerConnected
	return nil
}

// flushPending makes one delivery attempt of the pending message. The read,
// write and clear of the pending slot form one critical section.
func (p *Peer) flushPending() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.pending == nil {
		return
	}

	msg := *p.pending
	frames, err := EncodeFrames(msg.Header, msg.Payload, p.opts.maxFrameSize)
	if err != nil {
		p.log.Error("peer %s: dropping pending message %q: %v", p.name, msg.Header, err)
		p.pending = nil
		return
	}
	if err := p.writeLocked(frames); err != nil {
		p.state = PeerRetrying
		p.log.Debug("peer %s: retry of %q failed: %v", p.name, msg.Header, err)
		return
	}
	p.pending = nil
	p.log.Info("peer %s: delivered pending message %q after reconnect", p.name, msg.Header)
}

// arm records when the next retry is due and returns the delay.
func (p *Peer) arm() time.Duration {
	d := p.WaitInterval()
	p.nextRetry.Store(time.Now().Add(d).UnixNano())
	return d
}

func (p *Peer) retryLoop() {
	defer p.halt.Done.Close()

	timer := time.NewTimer(p.arm())
	defer timer.Stop()

	for {
		select {
		case <-p.halt.ReqStop.Chan:
			return
		case <-p.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.arm())
		case <-timer.C:
			p.flushPending()
			timer.Reset(p.arm())
		}
	}
}

// Close stops the retry loop and closes the connection. Any pending message
// is discarded. Close is idempotent.
func (p *Peer) Close() {
	p.cancel()
	p.halt.ReqStop.Close()
	<-p.halt.Done.Chan

	p.mu.Lock()
	p.closed = true
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.pending = nil
	p.state = PeerIdle
	p.mu.Unlock()

	p.watchers.Wait()
}
