/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

// Package engine implements the CoAP client engine and the correlator that
// binds requests to responses by token across the MUP1 transport.
package engine

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/Link512/stealthpool"
	"github.com/cornelk/hashmap"
	"github.com/velocity-sp/mvdctl/coap"
	"github.com/velocity-sp/mvdctl/core"
	"github.com/velocity-sp/mvdctl/mup1"
	"github.com/velocity-sp/mvdctl/transport"
	"github.com/velocity-sp/mvdctl/utils/priority_queue"
)

// Retransmission and pool defaults.
const (
	defaultAckInterval      = 3 * time.Second
	defaultMaxTransmissions = 5
	defaultPingTimeout      = 2 * time.Second
	deadTokenLifetime       = 6 * time.Second

	txPoolBlockCnt  = 64
	txPoolBlockSize = 1024
)

// timerEntry schedules a deadline check for one exchange. Entries are
// superseded rather than removed; a stale entry is skipped when it fires.
type timerEntry struct {
	tokenKey string
	deadline int64
}

// Engine drives CoAP exchanges over a single MUP1 transport. All mutation of
// the correlator registry and per-exchange block state is serialised behind
// the engine mutex; the parser is fed only from the transport's receive
// callback.
type Engine struct {
	transport transport.Transport
	parser    *mup1.Parser

	mu         sync.Mutex
	pending    *hashmap.HashMap
	deadTokens *deadTokenList
	timers     priority_queue.Queue[timerEntry, int64]
	wake       chan struct{}
	quit       chan struct{}
	closed     bool

	connState    ConnectionState
	announcement string
	pingWaiters  []chan string

	nextMessageID    uint16
	ackInterval      time.Duration
	maxTransmissions int
	blockSize        int

	txPool *stealthpool.Pool

	// Counters
	nUnmatched   uint64
	nLateDropped uint64
	nParseErrors uint64
}

// MakeEngine creates an engine bound to the specified transport.
func MakeEngine(t transport.Transport) *Engine {
	e := new(Engine)
	e.transport = t
	e.parser = mup1.NewParser()
	e.parser.SetMaxFrameSize(core.GetConfigIntDefault("mup1.max_frame_size", mup1.DefaultMaxFrameSize))
	e.pending = &hashmap.HashMap{}
	e.deadTokens = newDeadTokenList(deadTokenLifetime)
	e.timers = priority_queue.New[timerEntry, int64]()
	e.wake = make(chan struct{}, 1)
	e.quit = make(chan struct{})
	e.connState = Disconnected

	e.ackInterval = time.Duration(core.GetConfigIntDefault("coap.ack_timeout_ms", int(defaultAckInterval/time.Millisecond))) * time.Millisecond
	e.maxTransmissions = core.GetConfigIntDefault("coap.max_retransmit", defaultMaxTransmissions)
	e.blockSize = core.GetConfigIntDefault("coap.block_size", coap.DefaultBlockSize)

	var mid [2]byte
	rand.Read(mid[:])
	e.nextMessageID = uint16(mid[0])<<8 | uint16(mid[1])

	pool, err := stealthpool.New(txPoolBlockCnt, stealthpool.WithBlockSize(txPoolBlockSize))
	if err != nil {
		core.LogWarn(e, "Failed to allocate transmit pool, falling back to heap buffers")
	} else {
		e.txPool = pool
	}

	t.SetReceiveCallback(e.handleReceive)
	t.SetStateCallback(e.handleTransportState)
	return e
}

func (e *Engine) String() string {
	return "CoAPEngine"
}

// SetRetransmission overrides the CON retransmission interval and the total
// number of transmissions per message.
func (e *Engine) SetRetransmission(interval time.Duration, maxTransmissions int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ackInterval = interval
	e.maxTransmissions = maxTransmissions
}

// Start launches the transport reader and the deadline scheduler.
func (e *Engine) Start() {
	go e.transport.Run()
	go e.runScheduler()
}

// Connect verifies the device is reachable. The connection is only
// considered established after a successful ping.
func (e *Engine) Connect() error {
	e.mu.Lock()
	e.connState = Connecting
	e.mu.Unlock()

	banner, err := e.Ping(defaultPingTimeout)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.connState = Disconnected
		return err
	}
	e.connState = Connected
	if banner != "" {
		core.LogInfo(e, "Connected: ", banner)
	} else {
		core.LogInfo(e, "Connected")
	}
	return nil
}

// Close shuts the engine down. Outstanding exchanges fail with ErrCancelled.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.connState = Disconnecting
	e.failAllLocked(ErrCancelled)
	e.connState = Disconnected
	close(e.quit)
	e.mu.Unlock()

	e.transport.Close()
	if e.txPool != nil {
		e.txPool.Close()
	}
}

// ConnectionState returns the state of the connection to the device.
func (e *Engine) ConnectionState() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connState
}

// Announcement returns the payload of the most recent MUP1 announce frame,
// typically the device version string.
func (e *Engine) Announcement() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.announcement
}

// Parser exposes the MUP1 parser for its counters.
func (e *Engine) Parser() *mup1.Parser {
	return e.parser
}

// NUnmatchedReplies returns the number of replies with no pending exchange.
func (e *Engine) NUnmatchedReplies() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nUnmatched
}

// NLateReplies returns the number of replies for completed or cancelled
// exchanges that were silently discarded.
func (e *Engine) NLateReplies() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nLateDropped
}

// Ping sends a MUP1 ping frame and waits for the pong, returning the status
// banner carried in the reply.
func (e *Engine) Ping(timeout time.Duration) (string, error) {
	ch := make(chan string, 1)
	e.mu.Lock()
	e.pingWaiters = append(e.pingWaiters, ch)
	e.mu.Unlock()

	if err := e.transport.Send(mup1.NewFrame(mup1.TypePing, nil).Encode()); err != nil {
		e.removePingWaiter(ch)
		return "", err
	}

	select {
	case banner := <-ch:
		return banner, nil
	case <-time.After(timeout):
		e.removePingWaiter(ch)
		return "", ErrTimeout
	}
}

func (e *Engine) removePingWaiter(ch chan string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, waiter := range e.pingWaiters {
		if waiter == ch {
			e.pingWaiters = append(e.pingWaiters[:i], e.pingWaiters[i+1:]...)
			break
		}
	}
}

// SystemRequest sends a MUP1 system request frame. Fire and forget.
func (e *Engine) SystemRequest(payload []byte) error {
	return e.transport.Send(mup1.NewFrame(mup1.TypeSysReq, payload).Encode())
}

//
// Inbound path
//

func (e *Engine) handleReceive(data []byte) {
	for _, frame := range e.parser.Feed(data) {
		e.handleFrame(frame)
	}
}

func (e *Engine) handleFrame(frame *mup1.Frame) {
	switch frame.Type {
	case mup1.TypePing:
		e.mu.Lock()
		if len(e.pingWaiters) > 0 {
			ch := e.pingWaiters[0]
			e.pingWaiters = e.pingWaiters[1:]
			ch <- string(frame.Payload)
		} else {
			core.LogDebug(e, "Unsolicited pong - DROP")
		}
		e.mu.Unlock()

	case mup1.TypeAnnounce:
		e.mu.Lock()
		e.announcement = string(frame.Payload)
		e.mu.Unlock()
		core.LogInfo(e, "Device announcement: ", string(frame.Payload))

	case mup1.TypeTrace:
		core.LogDebug(e, "Device trace: ", string(frame.Payload))

	case mup1.TypeCoAP:
		msg, err := coap.Decode(frame.Payload)
		if err != nil {
			e.mu.Lock()
			e.nParseErrors++
			e.mu.Unlock()
			core.LogWarn(e, "Unable to decode CoAP message: ", err, " - DROP")
			return
		}
		e.handleCoAP(msg)

	default:
		core.LogDebug(e, "Ignoring frame of type ", frame.Type)
	}
}

func (e *Engine) handleCoAP(msg *coap.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Empty ACKs and RSTs reference the message ID, not the token.
	if msg.Code == coap.CodeEmpty && msg.Type == coap.Acknowledgement {
		if p := e.findByMessageIDLocked(msg.MessageID); p != nil {
			p.acked = true
			p.state = ExchangeAwaitAck
			// The real response arrives separately; allow it the full window.
			e.armDeadlineLocked(p, e.ackInterval*time.Duration(e.maxTransmissions))
		}
		return
	}
	if msg.Type == coap.Reset {
		if p := e.findByMessageIDLocked(msg.MessageID); p != nil {
			e.completeLocked(p, nil, ErrReset)
		}
		return
	}

	v, ok := e.pending.GetStringKey(string(msg.Token))
	if !ok {
		if e.deadTokens.Find(msg.Token) {
			e.nLateDropped++
			core.LogDebug(e, "Late reply for completed exchange - DROP")
		} else {
			e.nUnmatched++
			core.LogDebug(e, "Reply with unknown token - DROP")
		}
		return
	}
	p := v.(*pendingRequest)

	// A confirmable response needs its own ACK.
	if msg.Type == coap.Confirmable {
		ack, err := coap.NewMessage(coap.Acknowledgement, coap.CodeEmpty, msg.MessageID).Encode()
		if err == nil {
			e.transport.Send(mup1.NewFrame(mup1.TypeCoAP, ack).Encode())
		}
	}

	if msg.Code == coap.CodeContinue {
		if echo, ok := msg.Block1(); ok {
			e.advanceBlock1Locked(p, echo)
			return
		}
	}

	if msg.Code.IsSuccess() {
		if block2, ok := msg.Block2(); ok {
			e.handleBlock2Locked(p, msg, block2)
			return
		}
	}

	e.completeExchangeLocked(p, msg)
}

func (e *Engine) findByMessageIDLocked(messageID uint16) *pendingRequest {
	for kv := range e.pending.Iter() {
		p := kv.Value.(*pendingRequest)
		if p.messageID == messageID {
			return p
		}
	}
	return nil
}

func (e *Engine) handleTransportState(s transport.State) {
	if s != transport.Down {
		return
	}
	// A failed send already holds the engine mutex when the transport
	// reports down, so the fan-out must happen off this call stack.
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.failAllLocked(core.ErrTransportDown)
		e.connState = Disconnected
	}()
}

func (e *Engine) failAllLocked(err error) {
	var all []*pendingRequest
	for kv := range e.pending.Iter() {
		all = append(all, kv.Value.(*pendingRequest))
	}
	for _, p := range all {
		e.completeLocked(p, nil, err)
	}
}
