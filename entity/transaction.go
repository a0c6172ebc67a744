// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package entity

import (
	"context"
	"sort"
	"sync"

	"github.com/ankurah/ankurah-sub003/backend"
	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/event"
	"github.com/ankurah/ankurah-sub003/id"
	"github.com/ankurah/ankurah-sub003/store"
)

// Transaction accumulates property writes locally before being turned
// into a single Event by CommitLocalTransaction (spec §4.5.1). Set may be
// called any number of times for the same property; only the diff
// against the entity's last-committed value survives to the final event
// — an earlier Set in the same transaction is simply superseded, never
// folded through the backend's own resolution ladder (there is no writer
// identity to resolve against until the transaction becomes a real
// event).
type Transaction struct {
	mu            sync.Mutex
	collectionID  id.CollectionId
	entityID      id.EntityId
	parent        clock.Clock
	entity        *Entity // nil when this transaction creates a new entity
	registry      *backend.Registry
	opsByProperty map[string]event.Operation
}

// BeginLocalTransaction opens a transaction against an existing entity,
// based on its current head.
func (p *Pipeline) BeginLocalTransaction(ctx context.Context, collectionID id.CollectionId, entityID id.EntityId) (*Transaction, error) {
	sp, err := p.spaceFor(collectionID)
	if err != nil {
		return nil, err
	}
	ent, err := sp.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		collectionID:  collectionID,
		entityID:      entityID,
		parent:        ent.Head(),
		entity:        ent,
		registry:      p.registry,
		opsByProperty: make(map[string]event.Operation),
	}, nil
}

// BeginCreateTransaction opens a transaction for a brand-new entity. Its
// EntityID is left at the zero value: the creation event's real entity is
// derived from the event's own id once CommitLocalTransaction computes it
// (spec §3.1; see the note on ApplyEvent).
func (p *Pipeline) BeginCreateTransaction(collectionID id.CollectionId) *Transaction {
	return &Transaction{
		collectionID:  collectionID,
		parent:        clock.Empty(),
		registry:      p.registry,
		opsByProperty: make(map[string]event.Operation),
	}
}

// Set stages a desired value for property, computing its diff against
// either the entity's currently materialized backend for that property
// (if any) or a fresh zero-valued backendType instance. Passing the same
// property twice overwrites the earlier pending write.
func (tx *Transaction) Set(property, backendType string, desired []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	b, typeName, err := tx.baseline(property, backendType)
	if err != nil {
		return err
	}

	op, changed := b.Diff(desired)
	if !changed {
		delete(tx.opsByProperty, property)
		return nil
	}
	op.Property = property
	op.Backend = typeName
	tx.opsByProperty[property] = op
	return nil
}

func (tx *Transaction) baseline(property, backendType string) (backend.Backend, string, error) {
	if tx.entity != nil {
		clone, typeName, exists, err := tx.entity.cloneBackendFor(property, tx.registry)
		if err != nil {
			return nil, "", err
		}
		if exists {
			return clone, typeName, nil
		}
	}
	nb, err := tx.registry.New(backendType)
	if err != nil {
		return nil, "", err
	}
	return nb, backendType, nil
}

// CommitLocalTransaction turns tx's accumulated writes into one Event
// (operations ordered by property name, for a deterministic id regardless
// of Set call order) and feeds it through ApplyEvent. An empty
// transaction is a no-op reported as AlreadyPresent, matching ApplyEvent's
// own idempotency semantics rather than minting a no-op event.
func (p *Pipeline) CommitLocalTransaction(ctx context.Context, retriever store.Retriever, tx *Transaction) (*event.Event, Result, error) {
	tx.mu.Lock()
	if len(tx.opsByProperty) == 0 {
		tx.mu.Unlock()
		return nil, Result{Outcome: AlreadyPresent}, nil
	}
	names := make([]string, 0, len(tx.opsByProperty))
	for name := range tx.opsByProperty {
		names = append(names, name)
	}
	sort.Strings(names)
	ops := make([]event.Operation, 0, len(names))
	for _, name := range names {
		ops = append(ops, tx.opsByProperty[name])
	}
	collectionID, parent, entityID := tx.collectionID, tx.parent, tx.entityID
	tx.mu.Unlock()

	ev := event.New(entityID, collectionID, parent, ops)
	result, err := p.ApplyEvent(ctx, retriever, ev)
	return ev, result, err
}
