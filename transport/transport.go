/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

// Package transport provides duplex byte channels to a VelocityDRIVE-SP
// device. A transport delivers inbound bytes to a receive callback and
// accepts outbound bytes; framing happens above it.
package transport

import (
	"github.com/velocity-sp/mvdctl/core"
)

// Transport is an abstract duplex byte channel. A transport is exclusive to
// one protocol engine instance.
type Transport interface {
	String() string

	URI() string
	State() State

	// SetReceiveCallback registers the function receiving inbound bytes.
	// Must be called before Run.
	SetReceiveCallback(callback func([]byte))
	// SetStateCallback registers the function notified of state changes.
	SetStateCallback(callback func(State))

	// Run starts the receive loop and blocks until the transport goes down.
	Run()

	// Send writes outbound bytes to the channel.
	Send(data []byte) error

	Close()

	// Counters
	NInBytes() uint64
	NOutBytes() uint64
}

// transportBase provides logic common between transport types.
type transportBase struct {
	uri string

	state         State
	recvCallback  func([]byte)
	stateCallback func(State)

	hasQuit chan bool

	// Counters
	nInBytes  uint64
	nOutBytes uint64
}

func (t *transportBase) makeTransportBase(uri string) {
	t.uri = uri
	t.state = Down
	t.hasQuit = make(chan bool, 2)
}

// URI returns the endpoint URI of the transport.
func (t *transportBase) URI() string {
	return t.uri
}

// State returns the state of the transport.
func (t *transportBase) State() State {
	return t.state
}

// SetReceiveCallback registers the function receiving inbound bytes.
func (t *transportBase) SetReceiveCallback(callback func([]byte)) {
	t.recvCallback = callback
}

// SetStateCallback registers the function notified of state changes.
func (t *transportBase) SetStateCallback(callback func(State)) {
	t.stateCallback = callback
}

// NInBytes returns the number of bytes received on this transport.
func (t *transportBase) NInBytes() uint64 {
	return t.nInBytes
}

// NOutBytes returns the number of bytes sent on this transport.
func (t *transportBase) NOutBytes() uint64 {
	return t.nOutBytes
}

func (t *transportBase) deliver(data []byte) {
	t.nInBytes += uint64(len(data))
	if t.recvCallback != nil {
		t.recvCallback(data)
	}
}

func (t *transportBase) notifyState(module interface{}, old State, new State) {
	core.LogInfo(module, "state: ", old, " -> ", new)
	if t.stateCallback != nil {
		t.stateCallback(new)
	}
}
