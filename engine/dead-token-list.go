/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package engine

import (
	"time"

	"github.com/cespare/xxhash"
	"github.com/velocity-sp/mvdctl/utils/priority_queue"
)

// deadTokenList remembers tokens of completed and cancelled exchanges so that
// late replies are silently discarded rather than reported as unmatched.
type deadTokenList struct {
	list            map[uint64]bool
	expirationQueue priority_queue.Queue[uint64, int64]
	lifetime        time.Duration
}

// newDeadTokenList creates a new dead token list.
func newDeadTokenList(lifetime time.Duration) *deadTokenList {
	d := new(deadTokenList)
	d.list = make(map[uint64]bool)
	d.expirationQueue = priority_queue.New[uint64, int64]()
	d.lifetime = lifetime
	return d
}

// Find returns whether the specified token is present in the dead token list.
func (d *deadTokenList) Find(token []byte) bool {
	_, ok := d.list[xxhash.Sum64(token)]
	return ok
}

// Insert inserts the specified token. Returns whether it was already present.
func (d *deadTokenList) Insert(token []byte) bool {
	hash := xxhash.Sum64(token)
	_, exists := d.list[hash]
	if !exists {
		d.list[hash] = true
		d.expirationQueue.Push(hash, time.Now().Add(d.lifetime).UnixNano())
	}
	return exists
}

// RemoveExpiredEntries removes all expired entries from the dead token list.
func (d *deadTokenList) RemoveExpiredEntries() {
	evicted := 0
	for d.expirationQueue.Len() > 0 && d.expirationQueue.PeekPriority() < time.Now().UnixNano() {
		hash := d.expirationQueue.Pop()
		delete(d.list, hash)
		evicted += 1

		if evicted >= 100 {
			break
		}
	}
}
