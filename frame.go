// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"unicode/utf8"
)

// Wire layout of one frame:
//
//	[4-byte BE header length][header, UTF-8][1-byte more flag][4-byte BE payload length][payload]
const (
	MaxHeaderSize = 64 << 10

	moreFlagFinal byte = 0
	moreFlagMore  byte = 1
)

// Frame is one wire unit: a header and a bounded chunk of payload. More is
// set on every fragment of a larger message except the last one.
type Frame struct {
	Header  string
	More    bool
	Payload []byte
}

// Message is one logical send, possibly carried by several frames.
type Message struct {
	Header  string
	Payload []byte
}

// EncodeFrames splits a message into frames carrying at most maxFrameSize
// payload bytes each. Every fragment repeats the header.
func EncodeFrames(header string, payload []byte, maxFrameSize int) ([]Frame, error) {
	if maxFrameSize <= 0 {
		return nil, fmt.Errorf("iochannel: invalid max frame size %d", maxFrameSize)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	if len(payload) <= maxFrameSize {
		return []Frame{{Header: header, Payload: payload}}, nil
	}

	n := (len(payload) + maxFrameSize - 1) / maxFrameSize
	frames := make([]Frame, 0, n)
	for off := 0; off < len(payload); off += maxFrameSize {
		end := off + maxFrameSize
		if end > len(payload) {
			end = len(payload)
		}
		frames = append(frames, Frame{
			Header:  header,
			More:    end < len(payload),
			Payload: payload[off:end],
		})
	}
	return frames, nil
}

func validateHeader(header string) error {
	if len(header) > MaxHeaderSize {
		return &FramingError{Reason: fmt.Sprintf("header too long: %d bytes (max %d)", len(header), MaxHeaderSize)}
	}
	if !utf8.ValidString(header) {
		return &FramingError{Reason: "header is not valid UTF-8"}
	}
	return nil
}

// buffers returns the frame as a list of byte slices suitable for
// net.Buffers, without copying the payload. Empty header and payload
// slices are left out: on a synchronous stream such as net.Pipe a
// zero-length Write blocks until the reader's next Read.
func (f Frame) buffers() [][]byte {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(f.Header)))

	var tail [5]byte
	if f.More {
		tail[0] = moreFlagMore
	}
	binary.BigEndian.PutUint32(tail[1:], uint32(len(f.Payload)))

	bufs := make([][]byte, 0, 4)
	bufs = append(bufs, hdr[:])
	if len(f.Header) > 0 {
		bufs = append(bufs, []byte(f.Header))
	}
	bufs = append(bufs, tail[:])
	if len(f.Payload) > 0 {
		bufs = append(bufs, f.Payload)
	}
	return bufs
}

// MarshalBinary encodes the frame in wire format.
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := validateHeader(f.Header); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(9 + len(f.Header) + len(f.Payload))
	for _, b := range f.buffers() {
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// WriteTo writes the frame in wire format to w.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	if err := validateHeader(f.Header); err != nil {
		return 0, err
	}
	bufs := net.Buffers(f.buffers())
	return bufs.WriteTo(w)
}

// ReadFrame reads exactly one frame from r. Payload lengths above ceiling
// are reported as a *FramingError wrapping ErrFrameTooLarge. A clean end of
// stream before the first byte returns io.EOF.
func ReadFrame(r io.Reader, ceiling uint32) (Frame, error) {
	var (
		f    Frame
		size [4]byte
	)

	if _, err := io.ReadFull(r, size[:]); err != nil {
		return f, err
	}
	hlen := binary.BigEndian.Uint32(size[:])
	if hlen > MaxHeaderSize {
		return f, &FramingError{Reason: fmt.Sprintf("header length %d exceeds %d", hlen, MaxHeaderSize)}
	}

	hdr := make([]byte, hlen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return f, unexpected(err)
	}
	if !utf8.Valid(hdr) {
		return f, &FramingError{Reason: "header is not valid UTF-8"}
	}
	f.Header = string(hdr)

	var tail [5]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return f, unexpected(err)
	}
	switch tail[0] {
	case moreFlagFinal:
	case moreFlagMore:
		f.More = true
	default:
		return f, &FramingError{Reason: fmt.Sprintf("invalid more flag 0x%02x", tail[0])}
	}

	plen := binary.BigEndian.Uint32(tail[1:])
	if plen > ceiling {
		return f, &FramingError{
			Reason: fmt.Sprintf("payload length %d exceeds ceiling %d", plen, ceiling),
			Err:    ErrFrameTooLarge,
		}
	}

	f.Payload = make([]byte, plen)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return f, unexpected(err)
	}
	return f, nil
}

// unexpected turns an EOF in the middle of a frame into io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// reassembler accumulates fragments of one in-flight message. A connection
// carries at most one partial message at a time.
type reassembler struct {
	limit   int
	header  string
	partial bool
	buf     bytes.Buffer
}

func newReassembler(limit int) *reassembler {
	return &reassembler{limit: limit}
}

// add feeds one frame. It returns the complete message and true once the
// final fragment has arrived.
func (r *reassembler) add(f Frame) (Message, bool, error) {
	if r.partial && f.Header != r.header {
		r.reset()
		return Message{}, false, &FramingError{
			Reason: fmt.Sprintf("fragment header %q interleaved with in-flight message %q", f.Header, r.header),
		}
	}

	if !r.partial && !f.More {
		// fast path: single-frame message
		return Message{Header: f.Header, Payload: f.Payload}, true, nil
	}

	if r.buf.Len()+len(f.Payload) > r.limit {
		r.reset()
		return Message{}, false, &FramingError{
			Reason: fmt.Sprintf("reassembled message exceeds %d bytes", r.limit),
			Err:    ErrFrameTooLarge,
		}
	}

	r.header = f.Header
	r.partial = true
	r.buf.Write(f.Payload)
	if f.More {
		return Message{}, false, nil
	}

	payload := make([]byte, r.buf.Len())
	copy(payload, r.buf.Bytes())
	msg := Message{Header: r.header, Payload: payload}
	r.reset()
	return msg, true, nil
}

func (r *reassembler) reset() {
	r.header = ""
	r.partial = false
	r.buf.Reset()
}
