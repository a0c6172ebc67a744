// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package backend implements the per-property merge policies the entity
// apply pipeline folds each layer's writes through. Grounded on the
// teacher's small-capability-interface + constant-dispatch style seen in
// consensus/core/interfaces (Decidable, Acceptor) and the plain registry
// pattern of snow.Config, reshaped around named, pluggable property
// backends instead of consensus engine variants.
package backend

import (
	"fmt"
	"sync"

	"github.com/ankurah/ankurah-sub003/compare"
	"github.com/ankurah/ankurah-sub003/event"
	"github.com/ankurah/ankurah-sub003/id"
)

// Write is one event's operation targeting a property, filtered down by
// the entity pipeline to the events that touch a particular backend
// within a single layer. IsNew distinguishes a to_apply event (not yet
// reflected anywhere in the entity) from an already_applied one (offered
// only so causal-dominance backends can see the full candidate set —
// spec §4.4.1 step 2); commutative backends fold in only the IsNew
// writes, since an already_applied write is already part of their state.
type Write struct {
	EventID id.EventId
	Op      event.Operation
	IsNew   bool
}

// Backend owns the merge semantics for a single property. Implementations
// must be deterministic: applying the same sequence of layers in the same
// order always produces the same Value, regardless of what order events
// arrived in before being grouped into layers (spec §4.4).
type Backend interface {
	// ApplyLayer folds writes — a single layer's worth, already filtered
	// to this backend's name — into the current value. acc is the
	// shared ancestry window, used by causal-dominance backends (LWW) to
	// resolve concurrent writers; commutative backends may ignore it.
	// The returned bool reports whether a to_apply write actually won
	// resolution (spec §4.4.1 step 4) — the pipeline uses it to decide
	// whether this property belongs in a change notification.
	ApplyLayer(writes []Write, acc compare.Accumulator) (bool, error)

	// Value returns the backend's current resolved value.
	Value() []byte

	// Diff returns the operation that would move the backend from its
	// current value to desired, and false if desired already matches
	// (no operation is needed).
	Diff(desired []byte) (event.Operation, bool)

	// Serialize/Deserialize persist and restore the backend's full
	// internal state (which may be richer than Value(), e.g. LWW's
	// current writer id) for storage in a Snapshot.
	Serialize() []byte
	Deserialize([]byte) error
}

// Constructor builds a fresh, zero-valued Backend instance.
type Constructor func() Backend

// Registry maps backend names to constructors. A single default Registry
// (Default) is populated by each built-in backend's init(); embedding
// applications register additional backends (e.g. a CRDT they bring
// themselves) the same way.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// New constructs a fresh backend instance for name.
func (r *Registry) New(name string) (Backend, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("backend: no constructor registered for %q", name)
	}
	return ctor(), nil
}

// Names returns every registered backend name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		out = append(out, name)
	}
	return out
}

// Default is the process-wide registry the three built-in backends
// (lww, counter, text) register themselves into. Entities that don't
// need a custom registry can use this directly.
var Default = NewRegistry()
