/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package engine

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/velocity-sp/mvdctl/coap"
	"github.com/velocity-sp/mvdctl/core"
	"github.com/velocity-sp/mvdctl/mup1"
	"github.com/velocity-sp/mvdctl/utils/comparison"
)

// Submit starts an exchange and returns a handle resolving asynchronously.
// Request payloads larger than the block size are transferred with Block1.
func (e *Engine) Submit(method coap.Code, path string, payload []byte, opts Options) (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, core.ErrNotConnected
	}

	blockSize := e.blockSize
	if opts.BlockSize > 0 {
		blockSize = opts.BlockSize
	}
	szx, err := coap.SzxForSize(blockSize)
	if err != nil {
		return nil, err
	}

	token := e.newTokenLocked()
	p := &pendingRequest{
		tokenKey: string(token),
		token:    token,
		method:   method,
		path:     strings.TrimPrefix(path, "/"),
		opts:     opts,
		state:    ExchangeIdle,
		szx:      szx,
	}
	p.handle = &Handle{engine: e, tokenKey: p.tokenKey, done: make(chan struct{})}

	var first *coap.Message
	if len(payload) > blockSize {
		e.stageBlocksLocked(p, payload, blockSize)
		first = e.buildRequestLocked(p, p.txBlocks[0].data)
		first.SetBlock1(coap.Block{Num: 0, More: true, SZX: szx})
		p.state = ExchangeAwaitBlock1Ack
	} else {
		first = e.buildRequestLocked(p, payload)
		p.state = ExchangeSent
	}

	e.pending.Set(p.tokenKey, p)
	if err := e.sendMessageLocked(p, first); err != nil {
		e.pending.Del(p.tokenKey)
		e.releaseBlocksLocked(p)
		return nil, err
	}
	return p.handle, nil
}

// Do runs an exchange to completion.
func (e *Engine) Do(method coap.Code, path string, payload []byte, opts Options) (*Response, error) {
	handle, err := e.Submit(method, path, payload, opts)
	if err != nil {
		return nil, err
	}
	return handle.Wait()
}

// newTokenLocked draws a token no outstanding or recently-completed exchange
// is using.
func (e *Engine) newTokenLocked() []byte {
	for {
		token := make([]byte, 4)
		rand.Read(token)
		if _, exists := e.pending.GetStringKey(string(token)); exists {
			continue
		}
		if e.deadTokens.Find(token) {
			continue
		}
		return token
	}
}

// allocMessageIDLocked returns the next message ID. The sequence is
// monotonically increasing and wraps at 16 bits.
func (e *Engine) allocMessageIDLocked() uint16 {
	id := e.nextMessageID
	e.nextMessageID++
	return id
}

// buildRequestLocked assembles a request carrying the given payload chunk.
func (e *Engine) buildRequestLocked(p *pendingRequest, payload []byte) *coap.Message {
	m := coap.NewMessage(coap.Confirmable, p.method, e.allocMessageIDLocked())
	m.Token = p.token
	m.SetUriPath(p.path)
	if p.opts.Query != "" {
		m.AddOption(coap.OptionUriQuery, []byte(p.opts.Query))
	}
	if p.opts.Accept >= 0 {
		m.AddUintOption(coap.OptionAccept, uint32(p.opts.Accept))
	}
	if p.opts.ContentFormat >= 0 && len(payload) > 0 {
		m.AddUintOption(coap.OptionContentFormat, uint32(p.opts.ContentFormat))
	}
	m.Payload = payload
	return m
}

// sendMessageLocked encodes, frames, transmits, and arms the retransmission
// deadline for the current message of the exchange.
func (e *Engine) sendMessageLocked(p *pendingRequest, m *coap.Message) error {
	wire, err := m.Encode()
	if err != nil {
		return err
	}
	p.messageID = m.MessageID
	p.frame = mup1.NewFrame(mup1.TypeCoAP, wire).Encode()
	p.acked = false
	if err := e.transport.Send(p.frame); err != nil {
		return err
	}
	p.transmissions = 1
	e.armDeadlineLocked(p, e.ackInterval)
	return nil
}

func (e *Engine) armDeadlineLocked(p *pendingRequest, d time.Duration) {
	p.deadline = time.Now().Add(d).UnixNano()
	e.timers.Push(timerEntry{tokenKey: p.tokenKey, deadline: p.deadline}, p.deadline)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

//
// Block-wise transfer
//

// stageBlocksLocked splits the payload into pool-backed chunks.
func (e *Engine) stageBlocksLocked(p *pendingRequest, payload []byte, blockSize int) {
	p.txTotal = len(payload)
	for offset := 0; offset < len(payload); offset += blockSize {
		end := comparison.Min(offset+blockSize, len(payload))
		chunk := payload[offset:end]

		staged := stagedBlock{}
		if e.txPool != nil {
			if block, err := e.txPool.Get(); err == nil && len(block) >= len(chunk) {
				copy(block, chunk)
				staged.poolBlock = block
				staged.data = block[:len(chunk)]
			}
		}
		if staged.data == nil {
			staged.data = append([]byte{}, chunk...)
		}
		p.txBlocks = append(p.txBlocks, staged)
	}
}

func (e *Engine) releaseBlockLocked(staged *stagedBlock) {
	if staged.poolBlock != nil {
		e.txPool.Return(staged.poolBlock)
		staged.poolBlock = nil
	}
	staged.data = nil
}

func (e *Engine) releaseBlocksLocked(p *pendingRequest) {
	for i := range p.txBlocks {
		e.releaseBlockLocked(&p.txBlocks[i])
	}
}

// advanceBlock1Locked handles a 2.31 Continue acknowledging block txNext.
func (e *Engine) advanceBlock1Locked(p *pendingRequest, echo coap.Block) {
	if int(echo.Num) != p.txNext {
		core.LogDebug(e, "Out-of-order Block1 ack for block ", echo.Num, " - DROP")
		return
	}
	e.releaseBlockLocked(&p.txBlocks[p.txNext])
	p.txNext++

	if p.opts.Progress != nil {
		transferred := comparison.Min(p.txNext*echo.Size(), p.txTotal)
		p.opts.Progress(transferred, p.txTotal)
	}

	if p.txNext >= len(p.txBlocks) {
		// The final Continue should not happen (the last block gets the
		// real response); tolerate it by waiting for that response.
		return
	}

	chunk := p.txBlocks[p.txNext].data
	m := e.buildRequestLocked(p, chunk)
	m.SetBlock1(coap.Block{
		Num:  uint32(p.txNext),
		More: p.txNext < len(p.txBlocks)-1,
		SZX:  p.szx,
	})
	if err := e.sendMessageLocked(p, m); err != nil {
		e.completeLocked(p, nil, err)
	}
}

// handleBlock2Locked accumulates one response block and requests the next.
// Received blocks must form a contiguous prefix.
func (e *Engine) handleBlock2Locked(p *pendingRequest, msg *coap.Message, block2 coap.Block) {
	if block2.Num < p.rxNum {
		core.LogDebug(e, "Duplicate Block2 ", block2.Num, " - DROP")
		return
	}
	if block2.Num != p.rxNum {
		e.completeLocked(p, nil, fmt.Errorf("%w: non-contiguous Block2 %d (expected %d)",
			ErrParse, block2.Num, p.rxNum))
		return
	}

	p.rxBlocks = append(p.rxBlocks, append([]byte{}, msg.Payload...))
	p.rxNum++
	if p.opts.Progress != nil {
		p.opts.Progress(p.rxLen(), -1)
	}

	if !block2.More {
		cf := -1
		if v, ok := msg.ContentFormat(); ok {
			cf = int(v)
		}
		e.completeLocked(p, &Response{
			Code:          msg.Code,
			Payload:       p.rxPayload(nil),
			ContentFormat: cf,
		}, nil)
		return
	}

	p.state = ExchangeAwaitBlock2
	m := e.buildRequestLocked(p, nil)
	m.SetBlock2(coap.Block{Num: p.rxNum, More: false, SZX: block2.SZX})
	if err := e.sendMessageLocked(p, m); err != nil {
		e.completeLocked(p, nil, err)
	}
}

//
// Completion
//

// completeExchangeLocked resolves an exchange from its final response.
func (e *Engine) completeExchangeLocked(p *pendingRequest, msg *coap.Message) {
	switch {
	case msg.Code.IsSuccess():
		payload := msg.Payload
		if len(p.rxBlocks) > 0 {
			payload = p.rxPayload(msg.Payload)
		}
		cf := -1
		if v, ok := msg.ContentFormat(); ok {
			cf = int(v)
		}
		if p.txTotal > 0 && p.opts.Progress != nil {
			p.opts.Progress(p.txTotal, p.txTotal)
		}
		e.completeLocked(p, &Response{Code: msg.Code, Payload: payload, ContentFormat: cf}, nil)
	case msg.Code.IsClientError():
		e.completeLocked(p, nil, &ClientError{Code: msg.Code, Path: p.path, Token: p.token})
	case msg.Code.IsServerError():
		e.completeLocked(p, nil, &ServerError{Code: msg.Code, Path: p.path, Token: p.token})
	default:
		e.completeLocked(p, nil, fmt.Errorf("%w: unexpected response code %s", ErrParse, msg.Code))
	}
}

// completeLocked destroys the pending request and resolves its handle.
func (e *Engine) completeLocked(p *pendingRequest, response *Response, err error) {
	switch p.state {
	case ExchangeDone, ExchangeFailed, ExchangeTimedOut, ExchangeCancelled:
		return
	}

	e.pending.Del(p.tokenKey)
	e.deadTokens.Insert(p.token)
	e.deadTokens.RemoveExpiredEntries()
	e.releaseBlocksLocked(p)

	switch {
	case err == nil:
		p.state = ExchangeDone
	case err == ErrTimeout:
		p.state = ExchangeTimedOut
	case err == ErrCancelled:
		p.state = ExchangeCancelled
	default:
		p.state = ExchangeFailed
	}

	p.handle.response = response
	p.handle.err = err
	close(p.handle.done)
}

func (e *Engine) cancel(tokenKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.pending.GetStringKey(tokenKey)
	if !ok {
		return
	}
	e.completeLocked(v.(*pendingRequest), nil, ErrCancelled)
}

//
// Deadline scheduler
//

// runScheduler wakes on the earliest deadline and either retransmits or
// fails the exchange.
func (e *Engine) runScheduler() {
	for {
		e.mu.Lock()
		wait := time.Hour
		now := time.Now().UnixNano()
		for e.timers.Len() > 0 {
			deadline := e.timers.PeekPriority()
			if deadline > now {
				wait = time.Duration(deadline - now)
				break
			}
			e.fireDeadlineLocked(e.timers.Pop())
		}
		e.mu.Unlock()

		select {
		case <-e.wake:
		case <-time.After(wait):
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) fireDeadlineLocked(entry timerEntry) {
	v, ok := e.pending.GetStringKey(entry.tokenKey)
	if !ok {
		return
	}
	p := v.(*pendingRequest)
	if p.deadline != entry.deadline {
		// Superseded by a newer deadline.
		return
	}

	if p.acked || p.transmissions >= e.maxTransmissions {
		core.LogWarn(e, "Exchange on /", p.path, " timed out after ", p.transmissions, " transmissions")
		e.completeLocked(p, nil, ErrTimeout)
		return
	}

	core.LogDebug(e, "Retransmitting message ", p.messageID, " (attempt ", p.transmissions+1, ")")
	if err := e.transport.Send(p.frame); err != nil {
		e.completeLocked(p, nil, err)
		return
	}
	p.transmissions++
	e.armDeadlineLocked(p, e.ackInterval)
}
