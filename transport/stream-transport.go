/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package transport

import (
	"io"

	"github.com/velocity-sp/mvdctl/core"
)

const streamReadBufferSize = 4096

// StreamTransport communicates over any byte-oriented duplex channel, such
// as an opened UART device or a TCP connection.
type StreamTransport struct {
	transportBase
	conn io.ReadWriteCloser
}

var _ Transport = &StreamTransport{}

// NewStreamTransport creates a transport over the specified channel.
func NewStreamTransport(uri string, conn io.ReadWriteCloser) *StreamTransport {
	t := &StreamTransport{conn: conn}
	t.makeTransportBase(uri)
	t.state = Up
	return t
}

func (t *StreamTransport) String() string {
	return "StreamTransport, URI=" + t.uri
}

// Run reads from the channel until it fails, delivering each chunk to the
// receive callback.
func (t *StreamTransport) Run() {
	core.LogTrace(t, "Starting receive loop")

	recvBuf := make([]byte, streamReadBufferSize)
	for {
		readSize, err := t.conn.Read(recvBuf)
		if readSize > 0 {
			core.LogTrace(t, "Receive of size ", readSize)
			t.deliver(recvBuf[:readSize])
		}
		if err != nil {
			if t.state == Up {
				core.LogWarn(t, "Unable to read from channel (", err, ") - transport DOWN")
			}
			t.changeState(Down)
			break
		}
	}
}

// Send writes outbound bytes to the channel.
func (t *StreamTransport) Send(data []byte) error {
	if t.state != Up {
		return core.ErrTransportDown
	}
	for len(data) > 0 {
		written, err := t.conn.Write(data)
		if err != nil {
			core.LogWarn(t, "Unable to write on channel (", err, ") - transport DOWN")
			t.changeState(Down)
			return core.ErrTransportDown
		}
		t.nOutBytes += uint64(written)
		data = data[written:]
	}
	return nil
}

// Close shuts the transport down.
func (t *StreamTransport) Close() {
	t.changeState(Down)
}

func (t *StreamTransport) changeState(new State) {
	if t.state == new {
		return
	}

	old := t.state
	t.state = new

	if t.state != Up {
		t.conn.Close()
		t.hasQuit <- true
	}
	t.notifyState(t, old, new)
}
