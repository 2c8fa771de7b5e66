// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

import (
	"fmt"
	"net"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// NodeDescriptor names one node of the cluster and where it listens.
type NodeDescriptor struct {
	Name string `yaml:"name" json:"name"`
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// Addr returns the host:port dial address of the node.
func (n NodeDescriptor) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

func (n NodeDescriptor) String() string {
	return n.Name + "@" + n.Addr()
}

// Topology is the static description of the local node and its peers.
// It is immutable once built; reloading configuration means building a new
// Topology and a fresh Client/Server pair.
type Topology struct {
	local NodeDescriptor
	peers []NodeDescriptor
	index map[string]int
}

// NewTopology validates and builds a Topology. The local node may also be
// listed among the peers to allow a process to address itself.
func NewTopology(local NodeDescriptor, peers ...NodeDescriptor) (*Topology, error) {
	local.Name = normName(local.Name)
	if err := validateNode(local, true); err != nil {
		return nil, fmt.Errorf("%w: local node: %v", ErrInvalidTopology, err)
	}

	t := &Topology{
		local: local,
		peers: make([]NodeDescriptor, 0, len(peers)),
		index: make(map[string]int, len(peers)),
	}
	for _, p := range peers {
		p.Name = normName(p.Name)
		if err := validateNode(p, false); err != nil {
			return nil, fmt.Errorf("%w: peer %q: %v", ErrInvalidTopology, p.Name, err)
		}
		if _, dup := t.index[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate peer name %q", ErrInvalidTopology, p.Name)
		}
		t.index[p.Name] = len(t.peers)
		t.peers = append(t.peers, p)
	}
	return t, nil
}

func validateNode(n NodeDescriptor, local bool) error {
	switch {
	case n.Name == "":
		return fmt.Errorf("empty name")
	case n.Port == 0 && local:
		return nil
	case n.Port <= 0 || n.Port > 65535:
		return fmt.Errorf("port %d out of range", n.Port)
	}
	return nil
}

func normName(name string) string {
	return norm.NFC.String(name)
}

// Local returns the descriptor of the local node.
func (t *Topology) Local() NodeDescriptor { return t.local }

// Peers returns a copy of the peer descriptors in configuration order.
func (t *Topology) Peers() []NodeDescriptor {
	out := make([]NodeDescriptor, len(t.peers))
	copy(out, t.peers)
	return out
}

// Peer looks up a peer descriptor by name.
func (t *Topology) Peer(name string) (NodeDescriptor, bool) {
	i, ok := t.index[normName(name)]
	if !ok {
		return NodeDescriptor{}, false
	}
	return t.peers[i], true
}

// PeerNames returns the sorted peer names.
func (t *Topology) PeerNames() []string {
	names := make([]string, 0, len(t.peers))
	for _, p := range t.peers {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
