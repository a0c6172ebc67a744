// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package entitytest provides deterministic event-builder helpers shared
// by the entity package's test suite, grounded on the same mustEvent
// idiom package layer's tests use.
package entitytest

import (
	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/event"
	"github.com/ankurah/ankurah-sub003/id"
)

// LWWOp builds an Operation targeting property with the lww backend.
func LWWOp(property, value string) event.Operation {
	return event.Operation{Property: property, Backend: "lww", Bytes: []byte(value)}
}

// CounterOp builds an Operation targeting property with the counter
// backend, carrying delta encoded the way backend.Counter expects.
func CounterOp(property string, delta int64) event.Operation {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(delta)
		delta >>= 8
	}
	return event.Operation{Property: property, Backend: "counter", Bytes: buf[:]}
}

// CreateEvent builds a creation event: empty parent, zero-value EntityID
// (the real entity id is id.EntityIdFromEventId(ev.ID()), computed by the
// pipeline once the event's hash exists).
func CreateEvent(collectionID id.CollectionId, ops ...event.Operation) *event.Event {
	return event.New(id.EntityId{}, collectionID, clock.Empty(), ops)
}

// ChildEvent builds a non-creation event against an already-resolved
// entityID and parent clock.
func ChildEvent(entityID id.EntityId, collectionID id.CollectionId, parent clock.Clock, ops ...event.Operation) *event.Event {
	return event.New(entityID, collectionID, parent, ops)
}

// ResolvedEntityID returns the real entity identity a creation event
// produces once applied.
func ResolvedEntityID(create *event.Event) id.EntityId {
	return id.EntityIdFromEventId(create.ID())
}
