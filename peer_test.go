// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/destiny/iochannel/internal/testutil"
)

func unreachablePeer(t *testing.T, wait time.Duration) *Peer {
	t.Helper()
	o := newOptions([]Option{WithLogger(DevNullLogger), WithDialTimeout(500 * time.Millisecond)})
	nd := NodeDescriptor{Name: "down", Host: "127.0.0.1", Port: testutil.MustGetAvailablePort()}
	p := newPeer(nd, &o, wait)
	t.Cleanup(p.Close)
	return p
}

func TestPeerStateString(t *testing.T) {
	for state, want := range map[PeerState]string{
		PeerIdle:       "idle",
		PeerConnecting: "connecting",
		PeerConnected:  "connected",
		PeerRetrying:   "retrying",
		PeerState(42):  "PeerState(42)",
	} {
		if got := state.String(); got != want {
			t.Errorf("PeerState(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestPeerSendToDownPeerParksMessage(t *testing.T) {
	p := unreachablePeer(t, time.Hour)

	assert.Equal(t, PeerIdle, p.State())
	_, ok := p.Pending()
	assert.False(t, ok)

	require.NoError(t, p.Send("h", []byte("first")))
	require.NoError(t, p.SendMessage("second"))

	msg, ok := p.Pending()
	require.True(t, ok)
	assert.Equal(t, DefaultHeader, msg.Header)
	assert.Equal(t, "second", string(msg.Payload))
	assert.Equal(t, PeerRetrying, p.State())
}

func TestPeerPendingIsCopied(t *testing.T) {
	p := unreachablePeer(t, time.Hour)

	buf := []byte("original")
	require.NoError(t, p.Send("h", buf))
	copy(buf, "mutated!")

	msg, ok := p.Pending()
	require.True(t, ok)
	assert.Equal(t, "original", string(msg.Payload))
}

func TestPeerFailedSendRearmsRetry(t *testing.T) {
	p := unreachablePeer(t, time.Hour)

	testutil.WaitWithTimeout(t, func() bool {
		return p.nextRetry.Load() != 0
	}, 2*time.Second, time.Millisecond)
	armed := p.nextRetry.Load()

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, p.Send("h", []byte("x")))

	testutil.WaitWithTimeout(t, func() bool {
		return p.nextRetry.Load() > armed
	}, 2*time.Second, time.Millisecond)
}

func TestPeerInvalidHeaderIsReported(t *testing.T) {
	p := unreachablePeer(t, time.Hour)
	err := p.Send(string([]byte{0xff}), nil)
	var fe *FramingError
	assert.ErrorAs(t, err, &fe)
	_, ok := p.Pending()
	assert.False(t, ok)
}

func TestPeerRetryDeliversWhenListenerAppears(t *testing.T) {
	p := unreachablePeer(t, time.Hour)
	require.NoError(t, p.Send("h", []byte("late")))

	l, err := net.Listen("tcp", p.Target().Addr())
	require.NoError(t, err)
	defer l.Close()

	got := make(chan Message, 1)
	go func() {
		rw, err := l.Accept()
		if err != nil {
			return
		}
		o := newOptions([]Option{WithLogger(DevNullLogger)})
		c := newConn(rw, &o, nil)
		defer c.Close()
		msg, err := c.RecvMessage()
		if err == nil {
			got <- msg
		}
	}()

	p.SetWaitInterval(20 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, p.WaitInterval())

	select {
	case msg := <-got:
		assert.Equal(t, "h", msg.Header)
		assert.Equal(t, "late", string(msg.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("pending message was not retried")
	}

	testutil.WaitWithTimeout(t, func() bool {
		_, ok := p.Pending()
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPeerCloseIdempotent(t *testing.T) {
	p := unreachablePeer(t, 10*time.Millisecond)
	require.NoError(t, p.Send("h", []byte("x")))
	p.Close()
	p.Close()

	assert.ErrorIs(t, p.Send("h", []byte("y")), ErrClientClosed)
	_, ok := p.Pending()
	assert.False(t, ok)
}
