// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package id defines the identifier types shared across the causal core:
// EventId (content hash), EntityId (creation-time identity) and
// CollectionId (namespace). EventId and EntityId are fixed-width byte
// arrays; CollectionId is variable length. EventId is totally ordered
// lexicographically, which is also the deterministic tiebreak used by the
// merge policy in package backend.
package id

import (
	"bytes"
	"encoding/hex"
	"sort"
)

// EventId is the 32-byte content hash of an event's (entity_id, operations,
// parent_clock). See event.ComputeID for how it is derived.
type EventId [32]byte

// EntityId is an opaque 16-byte identifier, generated at creation; equal to
// the EventId of the entity's creation event when one exists (truncated —
// see EntityIdFromEventId).
type EntityId [16]byte

// CollectionId scopes entities into namespaces. Opaque, variable length.
type CollectionId []byte

// Empty reports whether the event id is the zero value.
func (e EventId) Empty() bool {
	return e == EventId{}
}

// String renders the id as lowercase hex.
func (e EventId) String() string {
	return hex.EncodeToString(e[:])
}

// Bytes returns the id's underlying bytes.
func (e EventId) Bytes() []byte {
	return e[:]
}

// Less reports whether e sorts strictly before o, lexicographically over
// the raw bytes. This ordering is the deterministic LWW tiebreak (spec
// §3.1, §4.4.1.c): the event with the greater id wins a tie.
func (e EventId) Less(o EventId) bool {
	return bytes.Compare(e[:], o[:]) < 0
}

// Compare returns -1, 0, or 1 per bytes.Compare semantics.
func (e EventId) Compare(o EventId) int {
	return bytes.Compare(e[:], o[:])
}

// EventIdFromBytes copies b (which must be exactly 32 bytes) into an EventId.
func EventIdFromBytes(b []byte) (EventId, bool) {
	var e EventId
	if len(b) != len(e) {
		return e, false
	}
	copy(e[:], b)
	return e, true
}

// SortEventIds returns a new, lexicographically sorted copy of ids.
func SortEventIds(ids []EventId) []EventId {
	out := make([]EventId, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (e EntityId) Empty() bool {
	return e == EntityId{}
}

func (e EntityId) String() string {
	return hex.EncodeToString(e[:])
}

func (e EntityId) Bytes() []byte {
	return e[:]
}

// EntityIdFromEventId derives an EntityId from a creation event's id by
// taking its first 16 bytes — the creation EventId remains the canonical,
// collision-resistant identity; EntityId is the short form entities are
// addressed by everywhere else (spec §3.1, §3.5).
func EntityIdFromEventId(e EventId) EntityId {
	var out EntityId
	copy(out[:], e[:len(out)])
	return out
}

func (c CollectionId) String() string {
	return hex.EncodeToString(c)
}

func (c CollectionId) Equal(o CollectionId) bool {
	return bytes.Equal(c, o)
}
