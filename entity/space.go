// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package entity

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/ankurah/ankurah-sub003/backend"
	"github.com/ankurah/ankurah-sub003/config"
	"github.com/ankurah/ankurah-sub003/id"
	"github.com/ankurah/ankurah-sub003/store"
)

// Space is the materialized-entity table for a single collection: a
// bounded LRU of live *Entity values backed by store.Storage, with
// concurrent loads of the same entity collapsed via singleflight so two
// racing apply_event calls for a brand-new entity don't each pay the
// storage round trip. Grounded on the teacher's testutils/network.go
// map[ids.NodeID]*Node registry-of-live-objects idiom, upgraded to an
// evicting cache since a long-lived embedding process cannot keep every
// entity it has ever touched resident.
type Space struct {
	collectionID id.CollectionId
	storage      store.Storage
	registry     *backend.Registry
	cache        *lru.Cache[id.EntityId, *Entity]
	sf           singleflight.Group
}

// NewSpace returns a Space for collectionID, bounded to cfg.Size resident
// entities.
func NewSpace(collectionID id.CollectionId, storage store.Storage, registry *backend.Registry, cfg config.EntityCache) (*Space, error) {
	cache, err := lru.New[id.EntityId, *Entity](cfg.Size)
	if err != nil {
		return nil, err
	}
	return &Space{
		collectionID: collectionID,
		storage:      storage,
		registry:     registry,
		cache:        cache,
	}, nil
}

// Get returns the materialized Entity for entityID, loading it from
// storage (or constructing a fresh pre-creation Entity if storage has no
// snapshot yet) on a cache miss. Concurrent misses for the same entityID
// share one storage round trip.
//
// The returned Entity's head may be stale relative to permanent storage —
// e.g. after a crash between commit_event and the persisted head advance
// (spec §4.5.5) — since Get has no event in hand to reconcile against and
// store.Retriever exposes no "list committed descendants" operation to
// discover one on its own. Reconciliation happens in ApplyEvent, which
// does have the specific event, the next time one is redelivered; see its
// idempotency guard.
func (s *Space) Get(ctx context.Context, entityID id.EntityId) (*Entity, error) {
	if ent, ok := s.cache.Get(entityID); ok {
		return ent, nil
	}

	key := entityID.String()
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if ent, ok := s.cache.Get(entityID); ok {
			return ent, nil
		}
		snap, err := s.storage.GetState(ctx, entityID)
		if errors.Is(err, store.ErrNotFound) {
			ent := newEntity(entityID, s.collectionID)
			s.cache.Add(entityID, ent)
			return ent, nil
		}
		if err != nil {
			return nil, err
		}
		ent, err := fromSnapshot(snap, s.registry)
		if err != nil {
			return nil, err
		}
		s.cache.Add(entityID, ent)
		return ent, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entity), nil
}

// Evict removes entityID from the resident cache without persisting it —
// used by tests that want the next Get to force a storage round trip.
func (s *Space) Evict(entityID id.EntityId) {
	s.cache.Remove(entityID)
}

// Persist writes ent's current snapshot through to durable storage. The
// pipeline calls this after a successful commit_event, per the
// crash-safety ordering invariant (spec §4.5.5): commit_event must reach
// storage strictly before the advanced head does.
func (s *Space) Persist(ctx context.Context, ent *Entity) error {
	return s.storage.SetState(ctx, ent.ID(), ent.Snapshot())
}
