// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package entity

import (
	"context"
	"sync"

	"github.com/ankurah/ankurah-sub003/backend"
	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/compare"
	"github.com/ankurah/ankurah-sub003/config"
	"github.com/ankurah/ankurah-sub003/event"
	"github.com/ankurah/ankurah-sub003/id"
	"github.com/ankurah/ankurah-sub003/layer"
	"github.com/ankurah/ankurah-sub003/logger"
	"github.com/ankurah/ankurah-sub003/metrics"
	"github.com/ankurah/ankurah-sub003/store"
)

var mergeLayerBuckets = []float64{1, 2, 3, 5, 8, 13, 21, 50, 100}

// Pipeline is the apply pipeline (spec §4.5): one per embedding process,
// fanning out into a lazily-constructed Space per collection. It owns no
// storage of its own beyond those Spaces — durability is entirely
// store.Storage's and store.Retriever's responsibility.
type Pipeline struct {
	mu       sync.Mutex
	spaces   map[string]*Space
	storage  store.Storage
	registry *backend.Registry
	notifier Notifier
	cacheCfg config.EntityCache
	budget   config.Budget
	toctou   config.TOCTOU
	metrics  *metrics.Registry
	log      logger.Logger
}

// NewPipeline constructs a Pipeline. A nil registry defaults to
// backend.Default, a nil notifier to NopNotifier, a nil metrics.Registry
// to metrics.NewNoOp, and a nil logger to logger.NewNop.
func NewPipeline(storage store.Storage, registry *backend.Registry, notifier Notifier, cacheCfg config.EntityCache, budget config.Budget, toctou config.TOCTOU, reg *metrics.Registry, log logger.Logger) *Pipeline {
	if registry == nil {
		registry = backend.Default
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if reg == nil {
		reg = metrics.NewNoOp()
	}
	if log == nil {
		log = logger.NewNop()
	}
	// LWW's ApplyLayer signature is fixed by the Backend interface, so it
	// can't accept a reg/log pair directly; wire the pipeline's own
	// observability into it here so C4 tie-breaks (SPEC_FULL §10.1) report
	// through the same registry and logger as everything else.
	backend.SetObservability(reg, log)
	return &Pipeline{
		spaces:   make(map[string]*Space),
		storage:  storage,
		registry: registry,
		notifier: notifier,
		cacheCfg: cacheCfg,
		budget:   budget,
		toctou:   toctou,
		metrics:  reg,
		log:      log,
	}
}

func (p *Pipeline) spaceFor(collectionID id.CollectionId) (*Space, error) {
	key := string(collectionID)
	p.mu.Lock()
	defer p.mu.Unlock()
	if sp, ok := p.spaces[key]; ok {
		return sp, nil
	}
	sp, err := NewSpace(collectionID, p.storage, p.registry, p.cacheCfg)
	if err != nil {
		return nil, err
	}
	p.spaces[key] = sp
	return sp, nil
}

// ApplyEvent is the apply_event entry point (spec §4.5.3).
//
// Deviation from the literal step (b) wording ("C2.compare(event.parent,
// head)"): this compares the event's OWN frontier — clock.Of(ev.ID()) —
// against head, not event.Parent against head. Comparing the parent alone
// cannot distinguish "built on a now-superseded but still-linear head"
// from "concurrent sibling of whatever advanced head past that parent" —
// two events sharing a stale parent are siblings, and the parent-vs-head
// relation reports StrictAscends for both indistinguishably, which would
// skip the merge entirely and silently drop one sibling's operations.
// Comparing the event's own id is what the outcome table in §4.5.3(c) and
// invariant I5 actually describe ("for all apply_event(E) with E.id ∈
// head") and is the reading applied throughout this implementation; see
// DESIGN.md.
func (p *Pipeline) ApplyEvent(ctx context.Context, retriever store.Retriever, ev *event.Event) (Result, error) {
	entityID := ev.EntityID
	if ev.IsCreate() && ev.EntityID.Empty() {
		// A creation event's EntityID field is the zero value (spec §3.1:
		// its entity_id would otherwise have to be a hashed input to its
		// own id — circular). The entity it belongs to is the truncation
		// of its OWN id instead; see DESIGN.md. A creation event that
		// names a non-zero EntityID is routed to that entity, where the
		// creation guard below rejects it if the entity already has a head.
		entityID = id.EntityIdFromEventId(ev.ID())
	}

	sp, err := p.spaceFor(ev.CollectionID)
	if err != nil {
		return Result{}, err
	}
	ent, err := sp.Get(ctx, entityID)
	if err != nil {
		return Result{}, err
	}

	// Idempotency guard (spec §4.5.2, §4.5.3 step 1). The literal step-1
	// wording — "if event_exists(event.id) return AlreadyPresent" — trusts
	// permanent-storage presence alone, but commit_event (which makes an
	// event durably existent) runs strictly before the persisted head
	// advance (§4.5.5). An event can therefore be exists()==true and still
	// unintegrated: crash in that window, and redelivery must still
	// discover it, re-derive its effect, and fold it into head ("Apply
	// succeeds; head advances; properties update" — §4.5.5/D5). So the
	// guard is gated on actual integration — reachable from head — not on
	// storage existence; a reachable event is the only case that is truly
	// AlreadyPresent. Membership in head is checked here; an event further
	// back in head's history is recognised by the compare below.
	if ent.Head().Contains(ev.ID()) {
		return Result{Outcome: AlreadyPresent}, nil
	}

	// event_exists is still useful below to avoid a redundant re-stage of
	// an event that survived the crash window above already committed.
	// Only a storage_is_definitive() retriever can trust this reading at
	// all (§4.5.2: "if I don't have it, it never existed locally") — on a
	// non-definitive retriever a "false" would be meaningless, so the call
	// is skipped and the event is (re-)staged unconditionally, which is
	// always safe since stage_event/commit_event are idempotent.
	var alreadyCommitted bool
	if retriever.StorageIsDefinitive() {
		alreadyCommitted, err = retriever.EventExists(ctx, ev.ID())
		if err != nil {
			return Result{}, err
		}
	}

	// Creation guard. A creation event routed by its own id can only meet
	// a non-empty head that grew from that very event, so it is a
	// redelivery and the compare below reports it; the guard rejects a
	// creation event that names an entity which already has a head.
	if ev.IsCreate() && !ev.EntityID.Empty() {
		head := ent.Head()
		if !head.IsEmpty() {
			if sole, ok := head.SoleMember(); !ok || sole != ev.ID() {
				return Result{Outcome: Rejected, Reason: ErrDuplicateCreation}, nil
			}
		}
	}

	if !alreadyCommitted {
		if err := retriever.StageEvent(ctx, ev); err != nil {
			return Result{}, err
		}
	}

	for attempt := 0; attempt < p.toctou.MaxAttempts; attempt++ {
		snapshotHead := ent.Head()
		if snapshotHead.Contains(ev.ID()) {
			return Result{Outcome: AlreadyPresent}, nil
		}

		rel, acc, err := compare.CompareWithEscalation(ctx, retriever, clock.Of(ev.ID()), snapshotHead, p.budget, p.metrics, p.log)
		if err != nil {
			return Result{}, err
		}

		switch rel.Kind {
		case compare.Disjoint:
			return Result{Outcome: Rejected, Reason: ErrDisjoint}, nil

		case compare.Equal, compare.StrictAscends:
			// The event is reachable from head, so it is already
			// integrated: no backend mutation, head unchanged, just make
			// sure it's durably stored.
			if !alreadyCommitted {
				if err := retriever.CommitEvent(ctx, event.Attested[*event.Event]{Value: ev}); err != nil {
					return Result{}, err
				}
			}
			return Result{Outcome: AlreadyPresent}, nil
		}

		// StrictDescends or DivergedSince: run the merge. Event fetches
		// (the only suspending work here) happen before the write lock is
		// taken, never across it.
		plan, nLayers, err := p.buildMergePlan(ctx, retriever, rel.Meet, snapshotHead, ev, acc)
		if err != nil {
			return Result{}, err
		}

		ent.mu.Lock()
		if !ent.head.Equal(snapshotHead) {
			ent.mu.Unlock()
			p.metrics.Counter(metrics.TOCTOURetriesTotal, "TOCTOU retries on entity apply").Inc()
			p.log.Debug("apply_event head changed under us, retrying",
				logger.String("event_id", ev.ID().String()),
				logger.Int("attempt", attempt))
			continue
		}

		changes, err := executeMergePlan(ent, plan, p.registry, acc)
		if err != nil {
			ent.mu.Unlock()
			return Result{}, err
		}
		ent.head = advanceHead(ent.head, ev.ID(), acc)

		if !alreadyCommitted {
			if err := retriever.CommitEvent(ctx, event.Attested[*event.Event]{Value: ev}); err != nil {
				ent.mu.Unlock()
				return Result{}, err
			}
		}
		ent.mu.Unlock()

		if err := sp.Persist(ctx, ent); err != nil {
			return Result{}, err
		}

		p.metrics.Counter(metrics.MergesAppliedTotal, "merges folded into an entity").Inc()
		p.metrics.Histogram(metrics.LayersPerMerge, "layers walked per merge", mergeLayerBuckets).Observe(float64(nLayers))
		p.notifier.Notify(Change{
			EntityID:       entityID,
			CollectionID:   ev.CollectionID,
			AppliedEvents:  []id.EventId{ev.ID()},
			PropertyChange: changes,
		})
		return Result{Outcome: Applied}, nil
	}

	p.metrics.Counter(metrics.ConcurrencyExhausted, "apply_event TOCTOU retries exhausted").Inc()
	p.log.Warn("apply_event rejected, TOCTOU retries exhausted",
		logger.String("event_id", ev.ID().String()),
		logger.Int("attempts", p.toctou.MaxAttempts))
	return Result{Outcome: Rejected, Reason: ErrConcurrencyExhausted}, nil
}

// ApplyState is the apply_state entry point: a state-transfer bootstrap,
// not a per-property merge (spec §4.5.1, §6.2). A flat snapshot carries no
// replayable operations, so unlike ApplyEvent there is nothing to fold
// layer by layer — the only sound actions are "adopt it wholesale" (the
// incoming state is strictly ahead, or the local entity hasn't been
// created yet) or "refuse it" (anything else, since a snapshot can't be
// reconciled against concurrent local history the way an event can).
func (p *Pipeline) ApplyState(ctx context.Context, retriever store.Retriever, collectionID id.CollectionId, attested event.Attested[store.Snapshot]) (Result, error) {
	snap := attested.Value

	sp, err := p.spaceFor(collectionID)
	if err != nil {
		return Result{}, err
	}
	ent, err := sp.Get(ctx, snap.EntityID)
	if err != nil {
		return Result{}, err
	}

	localHead := ent.Head()
	if localHead.Equal(snap.Head) {
		return Result{Outcome: AlreadyPresent}, nil
	}

	rel, _, err := compare.CompareWithEscalation(ctx, retriever, snap.Head, localHead, p.budget, p.metrics, p.log)
	if err != nil {
		return Result{}, err
	}

	switch rel.Kind {
	case compare.Equal, compare.StrictAscends:
		// Incoming state is at or behind what we already have.
		return Result{Outcome: AlreadyPresent}, nil

	case compare.StrictDescends:
		adopted, err := fromSnapshot(snap, p.registry)
		if err != nil {
			return Result{}, err
		}
		ent.mu.Lock()
		if !ent.head.Equal(localHead) {
			ent.mu.Unlock()
			return Result{Outcome: Rejected, Reason: ErrConcurrencyExhausted}, nil
		}
		ent.head = adopted.head
		ent.slots = adopted.slots
		ent.mu.Unlock()

		if err := sp.Persist(ctx, ent); err != nil {
			return Result{}, err
		}
		p.notifier.Notify(Change{EntityID: snap.EntityID, CollectionID: collectionID, AppliedEvents: snap.Head.List()})
		return Result{Outcome: Applied}, nil

	default:
		// DivergedSince or Disjoint: a flat snapshot has no operations to
		// replay against local concurrent history, so there is no sound
		// merge — refuse it rather than silently discarding one side.
		return Result{Outcome: Rejected, Reason: ErrDisjoint}, nil
	}
}

// mergePlan is the result of walking the layer iterator and fetching
// every event it references, computed before any lock is taken.
type mergePlan struct {
	layers              []map[string][]backend.Write
	propertyBackendType map[string]string
}

// buildMergePlan fetches every event the layer iterator between meet and
// the union of currentHead and ev references, grouping each layer's
// operations by property. This is the pipeline's only suspending work
// during a merge; it runs before the entity's write lock is acquired.
func (p *Pipeline) buildMergePlan(ctx context.Context, retriever store.Retriever, meet, currentHead clock.Clock, ev *event.Event, acc compare.Accumulator) (*mergePlan, int, error) {
	it, err := layer.NewIterator(meet, currentHead, clock.Of(ev.ID()), acc)
	if err != nil {
		return nil, 0, err
	}

	cache := map[id.EventId]*event.Event{ev.ID(): ev}
	fetch := func(eid id.EventId) (*event.Event, error) {
		if e, ok := cache[eid]; ok {
			return e, nil
		}
		e, err := retriever.GetEvent(ctx, eid)
		if err != nil {
			return nil, err
		}
		cache[eid] = e
		return e, nil
	}

	plan := &mergePlan{propertyBackendType: make(map[string]string)}
	nLayers := 0
	for {
		lay, ok := it.Next()
		if !ok {
			break
		}
		nLayers++

		combined := make(map[string][]backend.Write)
		add := func(eid id.EventId, isNew bool) error {
			e, err := fetch(eid)
			if err != nil {
				return err
			}
			for _, op := range e.Operations {
				combined[op.Property] = append(combined[op.Property], backend.Write{EventID: eid, Op: op, IsNew: isNew})
				if _, seen := plan.propertyBackendType[op.Property]; !seen {
					plan.propertyBackendType[op.Property] = op.Backend
				}
			}
			return nil
		}
		for _, eid := range lay.AlreadyApplied {
			if err := add(eid, false); err != nil {
				return nil, 0, err
			}
		}
		for _, eid := range lay.ToApply {
			if err := add(eid, true); err != nil {
				return nil, 0, err
			}
		}
		plan.layers = append(plan.layers, combined)
	}
	return plan, nLayers, nil
}

// executeMergePlan folds plan's layers into ent's backends, in order,
// materializing any backend that is first touched partway through the
// walk by replaying the property's earlier layers into it (spec §4.4.3).
// Callers must hold ent.mu for writing.
func executeMergePlan(ent *Entity, plan *mergePlan, registry *backend.Registry, acc compare.Accumulator) ([]PropertyChange, error) {
	var changes []PropertyChange
	for layerIdx, combined := range plan.layers {
		for property, writes := range combined {
			s, exists := ent.slots[property]
			if !exists {
				typeName := plan.propertyBackendType[property]
				nb, err := registry.New(typeName)
				if err != nil {
					return nil, err
				}
				for j := 0; j < layerIdx; j++ {
					prior, ok := plan.layers[j][property]
					if !ok {
						continue
					}
					if _, err := nb.ApplyLayer(prior, acc); err != nil {
						return nil, err
					}
				}
				s = slot{typeName: typeName, backend: nb}
				ent.slots[property] = s
			}

			changed, err := s.backend.ApplyLayer(writes, acc)
			if err != nil {
				return nil, err
			}
			if changed {
				changes = append(changes, PropertyChange{Backend: s.typeName, Property: property})
			}
		}
	}
	return changes, nil
}

// advanceHead computes (old_head ∖ ancestors_of(event)) ∪ {event.id}
// (spec §4.5.4): every old head tip the new event causally dominates is
// pruned, and the event's own id takes its place. Tips old_head holds
// that the event does NOT dominate survive as additional, legitimate
// concurrent heads.
func advanceHead(oldHead clock.Clock, eventID id.EventId, acc compare.Accumulator) clock.Clock {
	var dominated []id.EventId
	for _, h := range oldHead.List() {
		if compare.IsDescendant(acc, eventID, h) {
			dominated = append(dominated, h)
		}
	}
	return oldHead.Without(dominated...).With(eventID)
}
