// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Example notification server: prints every message delivered to the local
// node of a topology.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/destiny/iochannel"
	"github.com/destiny/iochannel/config"
)

func main() {
	var (
		topoPath = flag.String("topology", "", "topology file (.yaml, .yml or .json); defaults to $IOCHANNEL_LOCAL/$IOCHANNEL_PEERS")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	topo, err := loadTopology(*topoPath)
	if err != nil {
		log.Fatalf("Failed to load topology: %v", err)
	}

	level := iochannel.LogLevelInfo
	if *verbose {
		level = iochannel.LogLevelDebug
	}
	logger := iochannel.NewLogger(level)

	srv, err := iochannel.Start(topo, iochannel.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	srv.RegisterCallback(iochannel.NotifyFunc(func(header string, payload []byte) {
		log.Printf("%s [%s] %q", time.Now().Format(time.RFC3339), header, payload)
	}))

	log.Printf("Notification server %s listening on %s", topo.Local().Name, srv.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("Shutting down server...")
	if err := srv.Shutdown(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
}

func loadTopology(path string) (*iochannel.Topology, error) {
	if path == "" {
		return config.FromEnv("IOCHANNEL")
	}
	return config.Load(path)
}
