/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package engine

import (
	"testing"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/stretchr/testify/assert"
	"github.com/velocity-sp/mvdctl/utils/priority_queue"
)

func newBareEngine() *Engine {
	e := new(Engine)
	e.pending = &hashmap.HashMap{}
	e.deadTokens = newDeadTokenList(time.Second)
	e.timers = priority_queue.New[timerEntry, int64]()
	e.wake = make(chan struct{}, 1)
	return e
}

func TestMessageIDWrapsCleanly(t *testing.T) {
	e := newBareEngine()
	e.nextMessageID = 0xFFF0

	seen := make(map[uint16]int)
	var previous uint16
	for i := 0; i < 10000; i++ {
		id := e.allocMessageIDLocked()
		if i > 0 {
			assert.Equal(t, previous+1, id)
		}
		previous = id
		seen[id]++
	}
	// 10000 allocations over a 65536-wide space: no ID seen twice.
	for id, count := range seen {
		assert.Equal(t, 1, count, "message ID %d", id)
	}
}

func TestTokensNeverCollideWithOutstanding(t *testing.T) {
	e := newBareEngine()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token := e.newTokenLocked()
		key := string(token)
		assert.False(t, seen[key], "token reused while outstanding")
		seen[key] = true
		e.pending.Set(key, &pendingRequest{tokenKey: key, token: token})
	}
}

func TestTokensAvoidDeadList(t *testing.T) {
	e := newBareEngine()
	for i := 0; i < 100; i++ {
		token := e.newTokenLocked()
		assert.False(t, e.deadTokens.Find(token))
		e.deadTokens.Insert(token)
	}
}
