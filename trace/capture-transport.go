/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package trace

import (
	"github.com/velocity-sp/mvdctl/transport"
)

// CaptureTransport wraps a transport, recording both directions of traffic.
type CaptureTransport struct {
	inner   transport.Transport
	capture *Capture
}

var _ transport.Transport = &CaptureTransport{}

// NewCaptureTransport wraps the inner transport with the capture sink.
func NewCaptureTransport(inner transport.Transport, capture *Capture) *CaptureTransport {
	t := new(CaptureTransport)
	t.inner = inner
	t.capture = capture
	return t
}

func (t *CaptureTransport) String() string {
	return "Capture(" + t.inner.String() + ")"
}

// URI returns the endpoint URI of the inner transport.
func (t *CaptureTransport) URI() string {
	return t.inner.URI()
}

// State returns the state of the inner transport.
func (t *CaptureTransport) State() transport.State {
	return t.inner.State()
}

// SetReceiveCallback registers the receive callback, recording inbound bytes
// before delivery.
func (t *CaptureTransport) SetReceiveCallback(callback func([]byte)) {
	t.inner.SetReceiveCallback(func(data []byte) {
		t.capture.Record(data)
		callback(data)
	})
}

// SetStateCallback registers the state callback on the inner transport.
func (t *CaptureTransport) SetStateCallback(callback func(transport.State)) {
	t.inner.SetStateCallback(callback)
}

// Run runs the inner transport.
func (t *CaptureTransport) Run() {
	t.inner.Run()
}

// Send records and forwards outbound bytes.
func (t *CaptureTransport) Send(data []byte) error {
	t.capture.Record(data)
	return t.inner.Send(data)
}

// Close closes the inner transport.
func (t *CaptureTransport) Close() {
	t.inner.Close()
}

// NInBytes returns the inner transport's received byte count.
func (t *CaptureTransport) NInBytes() uint64 {
	return t.inner.NInBytes()
}

// NOutBytes returns the inner transport's sent byte count.
func (t *CaptureTransport) NOutBytes() uint64 {
	return t.inner.NOutBytes()
}
