/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package transport

import (
	"github.com/gorilla/websocket"
	"github.com/velocity-sp/mvdctl/core"
)

// WebSocketTransport communicates with a device behind a serial-over-WebSocket
// bridge. Each binary message carries raw UART bytes.
type WebSocketTransport struct {
	transportBase
	c *websocket.Conn
}

var _ Transport = &WebSocketTransport{}

// DialWebSocket connects to a bridge endpoint such as ws://host:9222/uart.
func DialWebSocket(url string) (*WebSocketTransport, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	t := &WebSocketTransport{c: c}
	t.makeTransportBase(url)
	t.state = Up
	return t, nil
}

func (t *WebSocketTransport) String() string {
	return "WebSocketTransport, URI=" + t.uri
}

// Run reads messages until the socket fails, delivering each binary message
// to the receive callback.
func (t *WebSocketTransport) Run() {
	core.LogTrace(t, "Starting receive loop")

	for {
		mt, message, err := t.c.ReadMessage()
		if err != nil {
			if t.state == Up {
				core.LogWarn(t, "Unable to read from socket (", err, ") - transport DOWN")
			}
			t.changeState(Down)
			break
		}

		if mt != websocket.BinaryMessage {
			core.LogWarn(t, "Ignored non-binary message")
			continue
		}

		core.LogTrace(t, "Receive of size ", len(message))
		t.deliver(message)
	}
}

// Send writes outbound bytes as one binary message.
func (t *WebSocketTransport) Send(data []byte) error {
	if t.state != Up {
		return core.ErrTransportDown
	}
	if err := t.c.WriteMessage(websocket.BinaryMessage, data); err != nil {
		core.LogWarn(t, "Unable to send on socket (", err, ") - transport DOWN")
		t.changeState(Down)
		return core.ErrTransportDown
	}
	t.nOutBytes += uint64(len(data))
	return nil
}

// Close shuts the transport down.
func (t *WebSocketTransport) Close() {
	t.changeState(Down)
}

func (t *WebSocketTransport) changeState(new State) {
	if t.state == new {
		return
	}

	old := t.state
	t.state = new

	if t.state != Up {
		t.c.Close()
		t.hasQuit <- true
	}
	t.notifyState(t, old, new)
}
