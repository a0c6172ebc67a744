// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package event implements the immutable Event record (spec §3.2) and its
// bit-stable wire format (spec §6.1). Event ids are content hashes:
// recomputing an id from stored fields must always yield the same 32
// bytes (spec §4.1, invariant I1).
package event

import (
	"crypto/sha256"

	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/id"
)

// Operation is one write within an event: which property it targets,
// which backend type owns that property (used to construct the backend
// instance the first time a property is seen — spec §3.8), and the
// opaque bytes that backend's apply_layer understands. Operations
// preserve insertion order, because that order participates in the
// canonical hash (spec §6.1).
type Operation struct {
	Property string
	Backend  string
	Bytes    []byte
}

// Event is an immutable, content-addressed unit of change to one entity.
// See spec §3.2.
type Event struct {
	id           id.EventId
	EntityID     id.EntityId
	CollectionID id.CollectionId
	Parent       clock.Clock
	Operations   []Operation
}

// New constructs an Event and computes its id. The parent clock must
// already be a valid antichain (spec §3.2 invariant); New does not verify
// this — callers that mint events from local mutations are expected to
// pass the entity's own head.
func New(entityID id.EntityId, collectionID id.CollectionId, parent clock.Clock, ops []Operation) *Event {
	e := &Event{
		EntityID:     entityID,
		CollectionID: collectionID,
		Parent:       parent,
		Operations:   ops,
	}
	e.id = ComputeID(e)
	return e
}

// ID returns the event's content-addressed identifier.
func (e *Event) ID() id.EventId {
	return e.id
}

// IsCreate reports whether this is a creation event (spec §3.2: empty parent).
func (e *Event) IsCreate() bool {
	return e.Parent.IsEmpty()
}

// ComputeID recomputes the canonical hash of an event's contents. Two
// events with the same (entity_id, operations, parent_clock) always
// produce the same id — this is what makes re-delivery detectable (spec
// §4.2.4) and what invariant I1 (spec §8) asserts.
func ComputeID(e *Event) id.EventId {
	h := sha256.New()
	h.Write(e.EntityID[:])
	h.Write(canonicalOperations(e.Operations))
	h.Write(canonicalParent(e.Parent))
	var out id.EventId
	copy(out[:], h.Sum(nil))
	return out
}

// WithOperations builds a new event from the given entity, collection,
// parent and ops, exactly as New does, so the id is always derived, never
// forged.
func WithOperations(entityID id.EntityId, collectionID id.CollectionId, parent clock.Clock, ops []Operation) *Event {
	return New(entityID, collectionID, parent, ops)
}
