// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads iochannel topologies from YAML or JSON files and
// from environment variables.
//
// A topology file looks like:
//
//	local:
//	  name: mbox1
//	  host: 10.0.0.1
//	  port: 7185
//	peers:
//	  - {name: mbox1, host: 10.0.0.1, port: 7185}
//	  - {name: mbox2, host: 10.0.0.2, port: 7185}
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	gjson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/destiny/iochannel"
)

// Format selects the topology file decoder.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// File is the on-disk shape of a topology.
type File struct {
	Local iochannel.NodeDescriptor   `yaml:"local" json:"local"`
	Peers []iochannel.NodeDescriptor `yaml:"peers" json:"peers"`
}

// Topology validates f and builds the topology.
func (f *File) Topology() (*iochannel.Topology, error) {
	return iochannel.NewTopology(f.Local, f.Peers...)
}

// FormatOf guesses the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("config: unknown topology file extension %q", filepath.Ext(path))
	}
}

// Load reads a topology file, choosing the decoder from its extension.
func Load(path string) (*iochannel.Topology, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: could not read topology %q: %w", path, err)
	}
	topo, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return topo, nil
}

// Parse decodes a topology document.
func Parse(data []byte, format Format) (*iochannel.Topology, error) {
	var f File
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("could not decode YAML topology: %w", err)
		}
	case FormatJSON:
		if err := gjson.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("could not decode JSON topology: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported topology format %q", format)
	}
	return f.Topology()
}

// Marshal encodes a topology in the given format.
func Marshal(t *iochannel.Topology, format Format) ([]byte, error) {
	f := File{Local: t.Local(), Peers: t.Peers()}
	switch format {
	case FormatYAML:
		return yaml.Marshal(&f)
	case FormatJSON:
		return gjson.MarshalIndent(&f, "", "  ")
	default:
		return nil, fmt.Errorf("config: unsupported topology format %q", format)
	}
}

// FromEnv builds a topology from two variables:
//
//	<PREFIX>_LOCAL=name=host:port
//	<PREFIX>_PEERS=name=host:port,name=host:port
func FromEnv(prefix string) (*iochannel.Topology, error) {
	return fromLookup(prefix, os.LookupEnv)
}

func fromLookup(prefix string, lookup func(string) (string, bool)) (*iochannel.Topology, error) {
	localKey := prefix + "_LOCAL"
	v, ok := lookup(localKey)
	if !ok || strings.TrimSpace(v) == "" {
		return nil, fmt.Errorf("config: %s is not set", localKey)
	}
	local, err := ParseNode(v)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", localKey, err)
	}

	var peers []iochannel.NodeDescriptor
	if v, ok := lookup(prefix + "_PEERS"); ok {
		for _, item := range strings.Split(v, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			nd, err := ParseNode(item)
			if err != nil {
				return nil, fmt.Errorf("config: %s_PEERS: %w", prefix, err)
			}
			peers = append(peers, nd)
		}
	}
	return iochannel.NewTopology(local, peers...)
}

// ParseNode parses "name=host:port".
func ParseNode(s string) (iochannel.NodeDescriptor, error) {
	name, addr, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok {
		return iochannel.NodeDescriptor{}, fmt.Errorf("invalid node %q (want name=host:port)", s)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return iochannel.NodeDescriptor{}, fmt.Errorf("invalid node address %q: %w", addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return iochannel.NodeDescriptor{}, fmt.Errorf("invalid node port %q: %w", port, err)
	}
	return iochannel.NodeDescriptor{Name: strings.TrimSpace(name), Host: host, Port: p}, nil
}
