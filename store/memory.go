// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"context"
	"sync"

	"github.com/ankurah/ankurah-sub003/event"
	"github.com/ankurah/ankurah-sub003/id"
)

// Memory is an in-process, in-memory implementation of both Retriever and
// Storage, used by every other package's test suite in place of a real
// persistence adapter — in the same spirit as the teacher's
// networking/sender/sendermock hand-written fake rather than a generated
// mock.
type Memory struct {
	mu       sync.RWMutex
	staged   map[id.EventId]*event.Event
	events   map[id.EventId]event.Attested[*event.Event]
	states   map[id.EntityId]Snapshot
	definite bool
}

// NewMemory returns an empty Memory store. definitive controls the value
// StorageIsDefinitive reports: true for a node that owns the sole copy of
// its data (a single-process embedding), false for a node that may be
// missing events held only by peers.
func NewMemory(definitive bool) *Memory {
	return &Memory{
		staged:   make(map[id.EventId]*event.Event),
		events:   make(map[id.EventId]event.Attested[*event.Event]),
		states:   make(map[id.EntityId]Snapshot),
		definite: definitive,
	}
}

func (m *Memory) GetEvent(_ context.Context, eventID id.EventId) (*event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.events[eventID]; ok {
		return a.Value, nil
	}
	if e, ok := m.staged[eventID]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

func (m *Memory) EventExists(_ context.Context, eventID id.EventId) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *Memory) StorageIsDefinitive() bool { return m.definite }

func (m *Memory) StageEvent(_ context.Context, e *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged[e.ID()] = e
	return nil
}

func (m *Memory) CommitEvent(_ context.Context, a event.Attested[*event.Event]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[a.Value.ID()] = a
	delete(m.staged, a.Value.ID())
	return nil
}

func (m *Memory) AddEvent(ctx context.Context, a event.Attested[*event.Event]) error {
	return m.CommitEvent(ctx, a)
}

func (m *Memory) HasEvent(ctx context.Context, eventID id.EventId) (bool, error) {
	return m.EventExists(ctx, eventID)
}

func (m *Memory) GetState(_ context.Context, entityID id.EntityId) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[entityID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) SetState(_ context.Context, entityID id.EntityId, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[entityID] = snap
	return nil
}

// DropStaged discards a staged event without committing it, used by tests
// that exercise crash-before-commit scenarios.
func (m *Memory) DropStaged(eventID id.EventId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.staged, eventID)
}
