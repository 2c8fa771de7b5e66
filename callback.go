// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iochannel

// NotifyCallback receives every message delivered to a Server.
// Implementations are called synchronously from the receive goroutine of
// the connection that carried the message.
type NotifyCallback interface {
	DataReceived(header string, payload []byte)
}

// NotifyFunc adapts an ordinary function to NotifyCallback.
type NotifyFunc func(header string, payload []byte)

func (f NotifyFunc) DataReceived(header string, payload []byte) {
	f(header, payload)
}
