/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package engine

import (
	"github.com/velocity-sp/mvdctl/coap"
)

// Options carries the optional parts of a request.
type Options struct {
	// ContentFormat is the Content-Format option value, or -1 for none.
	ContentFormat int
	// Accept is the Accept option value, or -1 for none.
	Accept int
	// Query is an optional Uri-Query string.
	Query string
	// BlockSize overrides the engine's block size for this exchange.
	BlockSize int
	// Progress, if set, is called after each transferred block with the
	// number of payload bytes moved so far and the total (total is -1 for
	// downloads of unknown length).
	Progress func(transferred int, total int)
}

// DefaultRequestOptions returns an Options with nothing set.
func DefaultRequestOptions() Options {
	return Options{ContentFormat: -1, Accept: -1}
}

// Response is the decoded outcome of a successful exchange.
type Response struct {
	Code          coap.Code
	Payload       []byte
	ContentFormat int
}

// Handle resolves an outstanding exchange asynchronously.
type Handle struct {
	engine   *Engine
	tokenKey string
	done     chan struct{}
	response *Response
	err      error
}

// Done returns a channel closed when the exchange completes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the exchange completes.
func (h *Handle) Wait() (*Response, error) {
	<-h.done
	return h.response, h.err
}

// Cancel removes the exchange from the correlator. A late reply for a
// cancelled exchange is silently discarded. Cancellation is idempotent.
func (h *Handle) Cancel() {
	h.engine.cancel(h.tokenKey)
}

// stagedBlock is one Block1 chunk awaiting transmission, possibly backed by
// a pool block that must be returned when the chunk is acknowledged.
type stagedBlock struct {
	data      []byte
	poolBlock []byte
}

// pendingRequest is the correlator's record of one outstanding exchange.
// It is created on submit, mutated only under the engine mutex, and
// destroyed on completion, error, or timeout.
type pendingRequest struct {
	tokenKey string
	token    []byte
	handle   *Handle

	method coap.Code
	path   string
	opts   Options

	state     ExchangeState
	messageID uint16
	frame     []byte
	deadline  int64
	// transmissions counts wire transmissions of the current message.
	transmissions int
	acked         bool

	// Block1 upload state
	txBlocks []stagedBlock
	txNext   int
	txTotal  int
	szx      uint8

	// Block2 download state
	rxBlocks [][]byte
	rxNum    uint32
}

// rxPayload concatenates the received blocks in index order.
func (p *pendingRequest) rxPayload(last []byte) []byte {
	var payload []byte
	for _, block := range p.rxBlocks {
		payload = append(payload, block...)
	}
	return append(payload, last...)
}

// rxLen returns the number of payload bytes received so far.
func (p *pendingRequest) rxLen() int {
	total := 0
	for _, block := range p.rxBlocks {
		total += len(block)
	}
	return total
}
