// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

import (
	"sort"
	"sync"
	"time"
)

// Client maps the peer names of a Topology to sending handles.
type Client struct {
	topology *Topology
	opts     options

	mu     sync.RWMutex
	peers  map[string]*Peer
	wait   time.Duration
	closed bool
}

// NewClient creates a Client with one Peer, and one retry loop, per peer of
// the topology.
func NewClient(topology *Topology, opts ...Option) *Client {
	c := &Client{
		topology: topology,
		opts:     newOptions(opts),
		peers:    make(map[string]*Peer),
	}
	c.wait = c.opts.waitInterval

	for _, nd := range topology.Peers() {
		c.peers[nd.Name] = newPeer(nd, &c.opts, c.wait)
	}
	return c
}

// Topology returns the topology the client was built from.
func (c *Client) Topology() *Topology { return c.topology }

// GetPeer returns the sending handle of a configured peer.
func (c *Client) GetPeer(name string) (*Peer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	p, ok := c.peers[normName(name)]
	if !ok {
		return nil, &UnknownPeerError{Name: name}
	}
	return p, nil
}

// Send is a shorthand for GetPeer(name) followed by Peer.Send.
func (c *Client) Send(name, header string, payload []byte) error {
	p, err := c.GetPeer(name)
	if err != nil {
		return err
	}
	return p.Send(header, payload)
}

// Broadcast sends the message to every configured peer, the local node
// included when it is listed among the peers.
func (c *Client) Broadcast(header string, payload []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClientClosed
	}
	peers := make([]*Peer, 0, len(c.peers))
	for _, p := range c.peers {
		peers = append(peers, p)
	}
	c.mu.RUnlock()

	for _, p := range peers {
		if err := p.Send(header, payload); err != nil {
			return err
		}
	}
	return nil
}

// PeerNames returns the sorted names of the configured peers.
func (c *Client) PeerNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.peers))
	for name := range c.peers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetWaitInterval sets the reconnect delay of every peer.
// Non-positive values are ignored.
func (c *Client) SetWaitInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wait = d
	for _, p := range c.peers {
		p.SetWaitInterval(d)
	}
}

// WaitInterval returns the reconnect delay applied to peers.
func (c *Client) WaitInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wait
}

// Shutdown closes every peer connection and stops every retry loop.
// It is safe to call more than once.
func (c *Client) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	peers := c.peers
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range peers {
		wg.Add(1)
		go func(p *Peer) {
			defer wg.Done()
			p.Close()
		}(p)
	}
	wg.Wait()
	c.opts.log.Debug("client for %s shut down", c.topology.Local().Name)
}
