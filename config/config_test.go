// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/destiny/iochannel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const yamlTopology = `
local:
  name: mbox1
  host: 10.0.0.1
  port: 7185
peers:
  - {name: mbox1, host: 10.0.0.1, port: 7185}
  - name: mbox2
    host: 10.0.0.2
    port: 7186
`

const jsonTopology = `{
  "local": {"name": "mbox1", "host": "10.0.0.1", "port": 7185},
  "peers": [
    {"name": "mbox1", "host": "10.0.0.1", "port": 7185},
    {"name": "mbox2", "host": "10.0.0.2", "port": 7186}
  ]
}`

func checkTopology(t *testing.T, topo *iochannel.Topology) {
	t.Helper()
	assert.Equal(t, iochannel.NodeDescriptor{Name: "mbox1", Host: "10.0.0.1", Port: 7185}, topo.Local())
	assert.Equal(t, []string{"mbox1", "mbox2"}, topo.PeerNames())
	nd, ok := topo.Peer("mbox2")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2:7186", nd.Addr())
}

func TestParse(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		topo, err := Parse([]byte(yamlTopology), FormatYAML)
		require.NoError(t, err)
		checkTopology(t, topo)
	})

	t.Run("json", func(t *testing.T) {
		topo, err := Parse([]byte(jsonTopology), FormatJSON)
		require.NoError(t, err)
		checkTopology(t, topo)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Parse([]byte("local: ["), FormatYAML)
		assert.Error(t, err)
		_, err = Parse([]byte("{"), FormatJSON)
		assert.Error(t, err)
		_, err = Parse([]byte("{}"), Format("toml"))
		assert.Error(t, err)
	})

	t.Run("duplicate-peers", func(t *testing.T) {
		doc := `{"local": {"name": "a", "host": "h", "port": 1},
		         "peers": [{"name": "b", "host": "h", "port": 2}, {"name": "b", "host": "h", "port": 3}]}`
		_, err := Parse([]byte(doc), FormatJSON)
		assert.True(t, errors.Is(err, iochannel.ErrInvalidTopology))
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	for name, body := range map[string]string{
		"topology.yaml": yamlTopology,
		"topology.yml":  yamlTopology,
		"topology.json": jsonTopology,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		topo, err := Load(path)
		require.NoError(t, err, name)
		checkTopology(t, topo)
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "topology.ini"))
	assert.Error(t, err)
}

func TestMarshalReloads(t *testing.T) {
	topo, err := Parse([]byte(yamlTopology), FormatYAML)
	require.NoError(t, err)

	for _, format := range []Format{FormatYAML, FormatJSON} {
		data, err := Marshal(topo, format)
		require.NoError(t, err)
		again, err := Parse(data, format)
		require.NoError(t, err, string(data))
		assert.Equal(t, topo.Local(), again.Local())
		assert.Equal(t, topo.Peers(), again.Peers())
	}
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		"IOCHAN_LOCAL": "mbox1=10.0.0.1:7185",
		"IOCHAN_PEERS": "mbox1=10.0.0.1:7185, mbox2=10.0.0.2:7186,",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	topo, err := fromLookup("IOCHAN", lookup)
	require.NoError(t, err)
	checkTopology(t, topo)

	t.Setenv("IOCHANTEST_LOCAL", "solo=[::1]:9000")
	topo, err = FromEnv("IOCHANTEST")
	require.NoError(t, err)
	assert.Equal(t, "[::1]:9000", topo.Local().Addr())
	assert.Empty(t, topo.Peers())

	_, err = FromEnv("IOCHAN_UNSET_PREFIX")
	assert.Error(t, err)
}

func TestParseNode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want iochannel.NodeDescriptor
		ok   bool
	}{
		{"a=h:1", iochannel.NodeDescriptor{Name: "a", Host: "h", Port: 1}, true},
		{"mbox2=localhost:7185", iochannel.NodeDescriptor{Name: "mbox2", Host: "localhost", Port: 7185}, true},
		{"noequals", iochannel.NodeDescriptor{}, false},
		{"a=noport", iochannel.NodeDescriptor{}, false},
		{"a=h:port", iochannel.NodeDescriptor{}, false},
	} {
		got, err := ParseNode(tc.in)
		if !tc.ok {
			if err == nil {
				t.Errorf("ParseNode(%q): expected an error, got %+v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseNode(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseNode(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
