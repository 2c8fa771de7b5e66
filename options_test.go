// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptionsDefaults(t *testing.T) {
	o := newOptions(nil)
	assert.Equal(t, DefaultLogger, o.log)
	assert.Equal(t, DefaultWaitInterval, o.waitInterval)
	assert.Equal(t, DefaultMaxFrameSize, o.maxFrameSize)
	assert.Equal(t, uint32(DefaultMaxPayloadLength), o.maxPayloadLen)

	o = newOptions([]Option{WithLogger(nil), WithWaitInterval(-time.Second), WithMaxFrameSize(0)})
	assert.Equal(t, DevNullLogger, o.log)
	assert.Equal(t, DefaultWaitInterval, o.waitInterval)
	assert.Equal(t, DefaultMaxFrameSize, o.maxFrameSize)
}

func TestFrameSizeCappedByCeiling(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LogLevelWarn)

	o := newOptions([]Option{WithLogger(logger), WithMaxFrameSize(1 << 20), WithMaxPayloadCeiling(1024)})
	assert.Equal(t, 1024, o.maxFrameSize)
	assert.Equal(t, uint32(1024), o.maxPayloadLen)
	assert.True(t, strings.Contains(buf.String(), "exceeds payload ceiling"), buf.String())

	// Frames built with the capped size are always accepted by the
	// matching ceiling.
	frames, err := EncodeFrames("h", make([]byte, 4096), o.maxFrameSize)
	assert.NoError(t, err)
	for _, f := range frames {
		assert.LessOrEqual(t, uint32(len(f.Payload)), o.maxPayloadLen)
	}

	o = newOptions([]Option{WithMaxFrameSize(512), WithMaxPayloadCeiling(1024)})
	assert.Equal(t, 512, o.maxFrameSize)
}
