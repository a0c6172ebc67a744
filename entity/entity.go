// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package entity implements the apply pipeline (spec §4.5): the
// transactional bridge between a raw Event arriving off the wire and the
// materialized, per-property state a consuming application reads. It is
// grounded on the teacher's "registry of live, mutable in-process
// objects" idiom (testutils/network.go's map[ids.NodeID]*Node) upgraded
// to a bounded LRU, and its own write-lock-per-object discipline
// (core/interfaces' node-level locking conventions) adapted to the
// snapshot-verify-commit loop spec §4.5.3 requires.
package entity

import (
	"sync"

	"github.com/ankurah/ankurah-sub003/backend"
	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/id"
	"github.com/ankurah/ankurah-sub003/store"
)

// slot pairs a materialized backend instance with the backend type name
// it was constructed from — the type name is what a Snapshot's
// BackendState.Backend field persists, since the backend instance itself
// only knows its own value, not its own registry key.
type slot struct {
	typeName string
	backend  backend.Backend
}

// Entity is the in-memory materialization of one entity: its causal head
// and the live backend instance behind every property it has ever had a
// write for (spec §3.5). All access beyond construction goes through the
// pipeline, which holds mu for the snapshot-verify-commit bracket
// (spec §5: "never held across an await/suspend point").
type Entity struct {
	mu           sync.RWMutex
	id           id.EntityId
	collectionID id.CollectionId
	head         clock.Clock
	slots        map[string]slot
}

// newEntity returns an empty, pre-creation entity: no head, no backends.
func newEntity(entityID id.EntityId, collectionID id.CollectionId) *Entity {
	return &Entity{
		id:           entityID,
		collectionID: collectionID,
		slots:        make(map[string]slot),
	}
}

// fromSnapshot reconstructs an Entity's live backend instances from a
// persisted Snapshot, using reg to look up each property's backend
// constructor by its recorded type name.
func fromSnapshot(snap store.Snapshot, reg *backend.Registry) (*Entity, error) {
	e := newEntity(snap.EntityID, snap.CollectionID)
	e.head = snap.Head
	for name, bs := range snap.Properties {
		b, err := reg.New(bs.Backend)
		if err != nil {
			return nil, err
		}
		if err := b.Deserialize(bs.Bytes); err != nil {
			return nil, err
		}
		e.slots[name] = slot{typeName: bs.Backend, backend: b}
	}
	return e, nil
}

// ID returns the entity's identifier.
func (e *Entity) ID() id.EntityId { return e.id }

// CollectionID returns the entity's collection.
func (e *Entity) CollectionID() id.CollectionId { return e.collectionID }

// Head returns the entity's current causal frontier.
func (e *Entity) Head() clock.Clock {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.head
}

// Property returns the current resolved value of the named property and
// whether that property has ever been written.
func (e *Entity) Property(name string) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.slots[name]
	if !ok {
		return nil, false
	}
	return s.backend.Value(), true
}

// Properties returns the set of property names the entity currently
// carries a backend for.
func (e *Entity) Properties() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.slots))
	for name := range e.slots {
		out = append(out, name)
	}
	return out
}

// cloneBackendFor returns an independent copy of the backend currently
// materialized for property — independent so a caller (the local
// transaction API) can compute a Diff against it without risking a
// mutation racing the live entity — along with its registered type name.
// Returns ok=false if property has never been written.
func (e *Entity) cloneBackendFor(property string, reg *backend.Registry) (b backend.Backend, typeName string, ok bool, err error) {
	e.mu.RLock()
	s, exists := e.slots[property]
	var bytes []byte
	if exists {
		typeName = s.typeName
		bytes = s.backend.Serialize()
	}
	e.mu.RUnlock()
	if !exists {
		return nil, "", false, nil
	}
	clone, err := reg.New(typeName)
	if err != nil {
		return nil, "", false, err
	}
	if err := clone.Deserialize(bytes); err != nil {
		return nil, "", false, err
	}
	return clone, typeName, true, nil
}

// Snapshot captures the entity's current head and every backend's
// serialized state (spec §6.2), suitable for store.Storage.SetState.
func (e *Entity) Snapshot() store.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

// snapshotLocked is Snapshot without the RLock — for callers (the
// pipeline) that already hold e.mu for writing and would deadlock on a
// second, non-reentrant RLock.
func (e *Entity) snapshotLocked() store.Snapshot {
	props := make(map[string]store.BackendState, len(e.slots))
	for name, s := range e.slots {
		props[name] = store.BackendState{Backend: s.typeName, Bytes: s.backend.Serialize()}
	}
	return store.Snapshot{
		EntityID:     e.id,
		CollectionID: e.collectionID,
		Head:         e.head,
		Properties:   props,
	}
}
