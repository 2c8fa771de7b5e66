// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Received is one message observed by a Recorder.
type Received struct {
	Header  string
	Payload []byte
}

// Recorder is a notify callback that keeps every message it receives.
type Recorder struct {
	mu   sync.Mutex
	msgs []Received
	sig  chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{sig: make(chan struct{}, 1)}
}

// DataReceived records a copy of the message.
func (r *Recorder) DataReceived(header string, payload []byte) {
	buf := make([]byte, len(payload))
	copy(buf, payload)

	r.mu.Lock()
	r.msgs = append(r.msgs, Received{Header: header, Payload: buf})
	r.mu.Unlock()

	select {
	case r.sig <- struct{}{}:
	default:
	}
}

// Messages returns a snapshot of the recorded messages in arrival order.
func (r *Recorder) Messages() []Received {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Received, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Payloads returns the recorded payloads as strings.
func (r *Recorder) Payloads() []string {
	msgs := r.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Payload)
	}
	return out
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

// WaitForCount blocks until at least n messages were recorded or the
// timeout expires. It reports whether the count was reached.
func (r *Recorder) WaitForCount(n int, timeout time.Duration) bool {
	ctx, cancel := TestTimeoutContext(timeout)
	defer cancel()
	for {
		if r.Len() >= n {
			return true
		}
		select {
		case <-ctx.Done():
			return r.Len() >= n
		case <-r.sig:
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestTimeoutContext creates a context with timeout for testing
func TestTimeoutContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// WaitWithTimeout waits for a condition with timeout
func WaitWithTimeout(t testing.TB, condition func() bool, timeout time.Duration, checkInterval time.Duration) {
	t.Helper()
	ctx, cancel := TestTimeoutContext(timeout)
	defer cancel()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("Timeout waiting for condition after %v", timeout)
		case <-ticker.C:
		}
	}
}
