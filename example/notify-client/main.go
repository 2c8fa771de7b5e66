// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Example notification client: sends one message to a named peer, or to
// every peer with -all.
package main

import (
	"flag"
	"log"
	"strings"
	"time"

	"github.com/destiny/iochannel"
	"github.com/destiny/iochannel/config"
)

func main() {
	var (
		topoPath = flag.String("topology", "", "topology file (.yaml, .yml or .json); defaults to $IOCHANNEL_LOCAL/$IOCHANNEL_PEERS")
		peerName = flag.String("peer", "", "name of the peer to notify")
		header   = flag.String("header", iochannel.DefaultHeader, "message header")
		all      = flag.Bool("all", false, "notify every configured peer")
		linger   = flag.Duration("linger", 2*time.Second, "time left to the retry loop before exiting")
		wait     = flag.Duration("wait", 500*time.Millisecond, "reconnect interval")
	)
	flag.Parse()

	var (
		topo *iochannel.Topology
		err  error
	)
	if *topoPath == "" {
		topo, err = config.FromEnv("IOCHANNEL")
	} else {
		topo, err = config.Load(*topoPath)
	}
	if err != nil {
		log.Fatalf("Failed to load topology: %v", err)
	}

	client := iochannel.NewClient(topo,
		iochannel.WithLogger(iochannel.NewLogger(iochannel.LogLevelInfo)),
		iochannel.WithWaitInterval(*wait),
	)
	defer client.Shutdown()

	payload := []byte(strings.Join(flag.Args(), " "))
	switch {
	case *all:
		err = client.Broadcast(*header, payload)
	case *peerName != "":
		err = client.Send(*peerName, *header, payload)
	default:
		log.Fatalf("Missing -peer or -all (known peers: %s)", strings.Join(client.PeerNames(), ", "))
	}
	if err != nil {
		log.Fatalf("Failed to send: %v", err)
	}

	// Give the retry loop a chance to flush a message parked while the
	// target was unreachable.
	deadline := time.Now().Add(*linger)
	for time.Now().Before(deadline) && hasPending(client) {
		time.Sleep(50 * time.Millisecond)
	}
	if hasPending(client) {
		log.Printf("Some peers were unreachable; their notification was dropped")
	}
}

func hasPending(c *iochannel.Client) bool {
	for _, name := range c.PeerNames() {
		p, err := c.GetPeer(name)
		if err != nil {
			continue
		}
		if _, ok := p.Pending(); ok {
			return true
		}
	}
	return false
}
