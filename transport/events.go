/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package transport

import "time"

const EventsCacheSize = 100

// events caches transport events in a fixed-size ring.
var events [EventsCacheSize]Event
var eventsIdx uint = 0
var eventsNextId uint64 = 0

// Event records one transport state transition.
type Event struct {
	eventId   uint64
	eventKind EventKind
	uri       string
	timestamp time.Time
}

// EventKind represents the type of a transport event.
type EventKind uint64

// Transport event kinds.
const (
	EventOpened EventKind = 1
	EventClosed EventKind = 2
	EventUp     EventKind = 3
	EventDown   EventKind = 4
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "Opened"
	case EventClosed:
		return "Closed"
	case EventUp:
		return "Up"
	default:
		return "Down"
	}
}

// Kind returns the kind of the event.
func (e *Event) Kind() EventKind {
	return e.eventKind
}

// URI returns the transport URI the event refers to.
func (e *Event) URI() string {
	return e.uri
}

// Timestamp returns when the event occurred.
func (e *Event) Timestamp() time.Time {
	return e.timestamp
}

// EmitEvent injects a new transport event into the cache.
func EmitEvent(kind EventKind, t Transport) {
	events[eventsIdx].eventId = eventsNextId
	eventsNextId++
	events[eventsIdx].eventKind = kind
	events[eventsIdx].uri = t.URI()
	events[eventsIdx].timestamp = time.Now()
	eventsIdx = (eventsIdx + 1) % EventsCacheSize
}

// GetEvent returns the event with the given id.
// It will return nil if the specified event is discarded or does not exist.
func GetEvent(eventId uint64) *Event {
	if eventId >= eventsNextId || eventId+EventsCacheSize < eventsNextId {
		return nil
	}
	idx := (eventsIdx + uint(eventId+EventsCacheSize-eventsNextId)) % EventsCacheSize
	return &events[idx]
}

// EventLastId returns the id of the last transport event.
func EventLastId() uint64 {
	return eventsNextId - 1
}
