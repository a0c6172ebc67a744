// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store defines the capability boundary the causal core consumes
// from its persistence layer (spec §6.3, §6.4). Concrete persistence
// adapters (K/V, relational) are external collaborators (spec §1) and are
// not implemented here; Memory, below, is a hand-written in-memory fake in
// the same spirit as the teacher's networking/sender/sendermock package,
// used to exercise every other component's tests.
package store

import (
	"context"
	"errors"

	"github.com/ankurah/ankurah-sub003/event"
	"github.com/ankurah/ankurah-sub003/id"
)

// ErrNotFound is returned by GetEvent/GetState when the identifier is
// unknown to the implementation.
var ErrNotFound = errors.New("store: not found")

// Retriever is the capability C5's apply pipeline (and, through it, C2's
// comparison) consumes to look up events (spec §4.5.2). Its
// implementation — staging plus permanent storage, possibly fetching from
// a remote peer — is external; the core only calls these five methods.
type Retriever interface {
	// GetEvent returns an event from staging or permanent storage,
	// possibly fetching remotely. Must be idempotent. Returns
	// ErrNotFound if the event is unknown anywhere reachable.
	GetEvent(ctx context.Context, eventID id.EventId) (*event.Event, error)

	// EventExists reports presence in PERMANENT storage only — no
	// staging, no remote fetch. Used by the apply pipeline, on a
	// definitive retriever only, to skip re-staging and re-committing an
	// event already in permanent storage.
	EventExists(ctx context.Context, eventID id.EventId) (bool, error)

	// StorageIsDefinitive reports whether this node can assert "if I
	// don't have it, it never existed locally" — enabling short-circuits
	// on re-delivery.
	StorageIsDefinitive() bool

	// StageEvent makes an event discoverable via GetEvent ahead of
	// durable commit.
	StageEvent(ctx context.Context, e *event.Event) error

	// CommitEvent persists an attested event and removes it from staging.
	CommitEvent(ctx context.Context, e event.Attested[*event.Event]) error
}

// Storage is the durable backing store the core requires (spec §6.4). All
// operations are suspending; add_event and set_state must each be atomic
// individually, but cross-operation atomicity is not required.
type Storage interface {
	GetEvent(ctx context.Context, eventID id.EventId) (*event.Event, error)
	AddEvent(ctx context.Context, e event.Attested[*event.Event]) error
	HasEvent(ctx context.Context, eventID id.EventId) (bool, error)
	GetState(ctx context.Context, entityID id.EntityId) (Snapshot, error)
	SetState(ctx context.Context, entityID id.EntityId, snap Snapshot) error
}
