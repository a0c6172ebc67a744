// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/config"
	"github.com/ankurah/ankurah-sub003/entity/entitytest"
	"github.com/ankurah/ankurah-sub003/event"
	"github.com/ankurah/ankurah-sub003/id"
	"github.com/ankurah/ankurah-sub003/store"
)

func newTestPipeline(mem *store.Memory) *Pipeline {
	return NewPipeline(mem, nil, nil, config.DefaultEntityCache, config.DefaultBudget, config.DefaultTOCTOU, nil, nil)
}

const testCollection = id.CollectionId("widgets")

// createEntity applies a creation event through p and returns the
// resolved entity id plus the creation event itself.
func createEntity(t *testing.T, ctx context.Context, p *Pipeline, mem *store.Memory, ops ...event.Operation) (id.EntityId, *event.Event) {
	t.Helper()
	ev := entitytest.CreateEvent(testCollection, ops...)
	res, err := p.ApplyEvent(ctx, mem, ev)
	require.NoError(t, err)
	require.Equal(t, Applied, res.Outcome)
	return entitytest.ResolvedEntityID(ev), ev
}

// --- I1/R1: id is a pure function of content; re-applying the same event is idempotent ---

func TestApplyEventIdempotentRedelivery(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "hello"))

	res, err := p.ApplyEvent(ctx, mem, create)
	require.NoError(err)
	require.Equal(AlreadyPresent, res.Outcome)

	sp, err := p.spaceFor(testCollection)
	require.NoError(err)
	ent, err := sp.Get(ctx, entityID)
	require.NoError(err)
	val, ok := ent.Property("title")
	require.True(ok)
	require.Equal("hello", string(val))
}

// --- I5: for E.id already in head, result is AlreadyPresent/Equal, head unchanged, no mutation ---

func TestApplyEventAlreadyInHeadIsNoop(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "hello"))

	sp, err := p.spaceFor(testCollection)
	require.NoError(err)
	ent, err := sp.Get(ctx, entityID)
	require.NoError(err)
	headBefore := ent.Head()

	// Construct a fresh *event.Event with the same content (simulating a
	// redelivered copy from a peer) and apply it again.
	redelivered := event.New(id.EntityId{}, testCollection, clock.Empty(), create.Operations)
	require.Equal(create.ID(), redelivered.ID())

	res, err := p.ApplyEvent(ctx, mem, redelivered)
	require.NoError(err)
	require.Equal(AlreadyPresent, res.Outcome)
	require.True(ent.Head().Equal(headBefore))
}

// --- Duplicate creation is rejected once an entity already has a head ---

func TestDuplicateCreationRejected(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, _ := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "hello"))

	sp, err := p.spaceFor(testCollection)
	require.NoError(err)
	ent, err := sp.Get(ctx, entityID)
	require.NoError(err)

	// A second, distinct creation event for the SAME entity id: forge one
	// by constructing via ChildEvent against an empty parent (IsCreate
	// true) but targeting the already-resolved entityID directly (as
	// would happen if a buggy peer mislabeled a creation event's entity).
	second := entitytest.ChildEvent(entityID, testCollection, clock.Empty(), entitytest.LWWOp("title", "goodbye"))
	require.True(second.IsCreate())

	res, err := p.ApplyEvent(ctx, mem, second)
	require.NoError(err)
	require.Equal(Rejected, res.Outcome)
	require.ErrorIs(res.Reason, ErrDuplicateCreation)
	require.Equal(1, ent.Head().Len())
}

// --- Simple linear descent: child event fast-forwards head, no merge needed ---

func TestApplyEventLinearDescent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "v1"))

	sp, err := p.spaceFor(testCollection)
	require.NoError(err)
	ent, err := sp.Get(ctx, entityID)
	require.NoError(err)

	child := entitytest.ChildEvent(entityID, testCollection, clock.Of(create.ID()), entitytest.LWWOp("title", "v2"))
	res, err := p.ApplyEvent(ctx, mem, child)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	require.True(ent.Head().Equal(clock.Of(child.ID())))
	val, _ := ent.Property("title")
	require.Equal("v2", string(val))
}

// --- Concurrent sibling events off the same parent must merge, not be dropped ---
// (the P/Q/X counterexample this pipeline's compare-subject choice exists
// to handle correctly).

func TestApplyEventConcurrentSiblingsMerge(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "v0"))

	left := entitytest.ChildEvent(entityID, testCollection, clock.Of(create.ID()), entitytest.LWWOp("title", "left"))
	right := entitytest.ChildEvent(entityID, testCollection, clock.Of(create.ID()), entitytest.LWWOp("title", "right"))

	res, err := p.ApplyEvent(ctx, mem, left)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	res, err = p.ApplyEvent(ctx, mem, right)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	sp, err := p.spaceFor(testCollection)
	require.NoError(err)
	ent, err := sp.Get(ctx, entityID)
	require.NoError(err)

	require.True(ent.Head().Equal(clock.Of(left.ID(), right.ID())))

	// LWW tiebreak: whichever event id is lexicographically greater wins.
	var wantWinner string
	if left.ID().Compare(right.ID()) > 0 {
		wantWinner = "left"
	} else {
		wantWinner = "right"
	}
	val, ok := ent.Property("title")
	require.True(ok)
	require.Equal(wantWinner, string(val))
}

// --- D1-D3: delivery-order independence. Three concurrent events off one
// parent, written in three different orders across three independently
// constructed pipelines, all converge to the same head and value. ---

func TestDeterminismAcrossDeliveryOrders(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	build := func() (*event.Event, *event.Event, *event.Event, *event.Event) {
		mem := store.NewMemory(true)
		p := newTestPipeline(mem)
		_, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("p", "g"))
		return create, nil, nil, nil
	}
	create0, _, _, _ := build()

	mkSiblings := func(entityID id.EntityId, parent clock.Clock) (a, b, c *event.Event) {
		a = entitytest.ChildEvent(entityID, testCollection, parent, entitytest.LWWOp("p", "a"))
		b = entitytest.ChildEvent(entityID, testCollection, parent, entitytest.LWWOp("p", "b"))
		c = entitytest.ChildEvent(entityID, testCollection, parent, entitytest.LWWOp("p", "c"))
		return
	}

	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}
	var convergedHead clock.Clock
	var convergedValue string

	for oi, order := range orders {
		mem := store.NewMemory(true)
		p := newTestPipeline(mem)
		entityID, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("p", "g"))
		require.Equal(create0.Operations, create.Operations)

		a, b, c := mkSiblings(entityID, clock.Of(create.ID()))
		evs := []*event.Event{a, b, c}

		for _, idx := range order {
			res, err := p.ApplyEvent(ctx, mem, evs[idx])
			require.NoError(err)
			require.Equal(Applied, res.Outcome)
		}

		sp, err := p.spaceFor(testCollection)
		require.NoError(err)
		ent, err := sp.Get(ctx, entityID)
		require.NoError(err)

		head := ent.Head()
		require.True(head.Equal(clock.Of(a.ID(), b.ID(), c.ID())), "order %v", order)
		val, _ := ent.Property("p")

		if oi == 0 {
			convergedHead = head
			convergedValue = string(val)
		} else {
			require.True(convergedHead.Equal(head), "order %v diverged head", order)
			require.Equal(convergedValue, string(val), "order %v diverged value", order)
		}
	}
}

// --- D4: deep-history budget escalation. A long linear chain plus a
// concurrent new event still resolves correctly once the budget escalates. ---

func TestApplyEventDeepHistoryEscalates(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	// Use a Pipeline with a deliberately small initial budget so the
	// chain below forces at least one escalation.
	p := NewPipeline(mem, nil, nil, config.DefaultEntityCache, config.Budget{Default: 50, Escalation: 4, MaxEscalations: 2}, config.DefaultTOCTOU, nil, nil)

	entityID, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("p", "0"))

	parent := clock.Of(create.ID())
	var last *event.Event
	for i := 0; i < 300; i++ {
		ev := entitytest.ChildEvent(entityID, testCollection, parent, entitytest.LWWOp("p", "v"))
		res, err := p.ApplyEvent(ctx, mem, ev)
		require.NoError(err)
		require.Equal(Applied, res.Outcome)
		parent = clock.Of(ev.ID())
		last = ev
	}

	// A sibling concurrent with the very first child off the creation
	// event, far behind the now-300-deep chain: compare must walk back
	// (and escalate) to find the true meet.
	sibling := entitytest.ChildEvent(entityID, testCollection, clock.Of(create.ID()), entitytest.LWWOp("p", "sibling"))
	res, err := p.ApplyEvent(ctx, mem, sibling)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	sp, err := p.spaceFor(testCollection)
	require.NoError(err)
	ent, err := sp.Get(ctx, entityID)
	require.NoError(err)
	require.True(ent.Head().Equal(clock.Of(last.ID(), sibling.ID())))
}

// --- D6: a new property introduced by an event merged well after the
// entity's last full walk must be late-materialized from the merge's own
// layer history, not start from a blank backend. ---

func TestLateMaterializationAcrossNewProperty(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "v0"))

	// Two concurrent branches: left only ever touches "title"; right
	// introduces "body" for the first time. Merging them must replay
	// left's branch into a freshly constructed "body" backend too (there
	// is none yet, since left never wrote body) — but since only right
	// writes body, the only required correctness property is that body's
	// value reflects right's write and title reflects the LWW merge of
	// both branches.
	left := entitytest.ChildEvent(entityID, testCollection, clock.Of(create.ID()), entitytest.LWWOp("title", "left"))
	right := entitytest.ChildEvent(entityID, testCollection, clock.Of(create.ID()), entitytest.LWWOp("body", "right-body"))

	res, err := p.ApplyEvent(ctx, mem, left)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	res, err = p.ApplyEvent(ctx, mem, right)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	sp, err := p.spaceFor(testCollection)
	require.NoError(err)
	ent, err := sp.Get(ctx, entityID)
	require.NoError(err)

	body, ok := ent.Property("body")
	require.True(ok)
	require.Equal("right-body", string(body))

	title, ok := ent.Property("title")
	require.True(ok)
	require.Equal("left", string(title))

	require.True(ent.Head().Equal(clock.Of(left.ID(), right.ID())))
}

// --- D5: crash recovery. An event staged and committed to the retriever,
// but whose snapshot never reached durable storage (simulating a crash
// between commit_event and persisted head advancement), must be replayed
// cleanly from a fresh, uncached Space: redelivering the same event again
// converges to the same final state with no duplicate effects. ---

// TestCrashBeforePersistReplaysCleanly drives the exact crash window spec
// §4.5.5/D5 describes: commit_event succeeds (the event is durably in
// permanent storage) but the process crashes before the persisted head
// advances, so a fresh materialization still reflects the OLD head.
// Redelivering the event afterward must still apply it for real — head
// advances and properties update — not return AlreadyPresent.
func TestCrashBeforePersistReplaysCleanly(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "v0"), entitytest.LWWOp("body", "b0"))

	child := entitytest.ChildEvent(entityID, testCollection, clock.Of(create.ID()), entitytest.LWWOp("title", "v1"), entitytest.LWWOp("body", "b1"))
	res, err := p.ApplyEvent(ctx, mem, child)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	// Build the event that "crashes": stage and commit it directly against
	// the retriever, exactly as ApplyEvent would up through CommitEvent,
	// but never advance or persist the entity's head — the crash window.
	crashed := entitytest.ChildEvent(entityID, testCollection, clock.Of(child.ID()),
		entitytest.LWWOp("title", "v2"), entitytest.LWWOp("body", "b2"))
	require.NoError(mem.StageEvent(ctx, crashed))
	require.NoError(mem.CommitEvent(ctx, event.Attested[*event.Event]{Value: crashed}))

	// Simulate the process restart: a fresh Pipeline (and therefore a
	// fresh, empty entity cache) bound to the SAME retriever/storage. Its
	// first materialization of entityID reads storage's last persisted
	// snapshot, which still references child, not crashed.
	restarted := newTestPipeline(mem)
	rsp, err := restarted.spaceFor(testCollection)
	require.NoError(err)
	ent, err := rsp.Get(ctx, entityID)
	require.NoError(err)
	require.True(ent.Head().Equal(clock.Of(child.ID())))
	title, _ := ent.Property("title")
	require.Equal("v1", string(title))

	// Redelivering the committed-but-unintegrated event must still
	// succeed: head advances and properties update.
	res, err = restarted.ApplyEvent(ctx, mem, crashed)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	ent, err = rsp.Get(ctx, entityID)
	require.NoError(err)
	require.True(ent.Head().Equal(clock.Of(crashed.ID())))
	title, _ = ent.Property("title")
	require.Equal("v2", string(title))
	body, _ := ent.Property("body")
	require.Equal("b2", string(body))

	// Now that head and storage agree, a second redelivery is a pure
	// no-op.
	res, err = restarted.ApplyEvent(ctx, mem, crashed)
	require.NoError(err)
	require.Equal(AlreadyPresent, res.Outcome)
}

// TestStagedButUncommittedEventIsAppliedFresh covers the adjacent, weaker
// case: an event staged but never committed (e.g. the process crashed
// before commit_event itself ran) must be applied as a brand-new event on
// redelivery, exactly once.
func TestStagedButUncommittedEventIsAppliedFresh(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "v0"))

	dangling := entitytest.ChildEvent(entityID, testCollection, clock.Of(create.ID()), entitytest.LWWOp("title", "v1"))
	require.NoError(mem.StageEvent(ctx, dangling))
	mem.DropStaged(dangling.ID())

	sp, err := p.spaceFor(testCollection)
	require.NoError(err)
	ent, err := sp.Get(ctx, entityID)
	require.NoError(err)
	require.True(ent.Head().Equal(clock.Of(create.ID())))

	res, err := p.ApplyEvent(ctx, mem, dangling)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	res, err = p.ApplyEvent(ctx, mem, dangling)
	require.NoError(err)
	require.Equal(AlreadyPresent, res.Outcome)

	ent, err = sp.Get(ctx, entityID)
	require.NoError(err)
	require.True(ent.Head().Equal(clock.Of(dangling.ID())))
}

// --- Disjoint events (no common ancestry) are rejected, not merged. ---

func TestApplyEventDisjointRejected(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, _ := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "v0"))

	// A "child" event claiming a parent that was never actually staged
	// or committed anywhere: compare cannot find a meet.
	foreignParent := clock.Of(id.EventId{0xFF})
	foreign := entitytest.ChildEvent(entityID, testCollection, foreignParent, entitytest.LWWOp("title", "intruder"))

	res, err := p.ApplyEvent(ctx, mem, foreign)
	require.NoError(err)
	require.Equal(Rejected, res.Outcome)
	require.ErrorIs(res.Reason, ErrDisjoint)
}

// --- apply_state: bootstrapping a brand-new local entity from a snapshot ---

func TestApplyStateBootstrapsFreshEntity(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	srcMem := store.NewMemory(true)
	srcPipeline := newTestPipeline(srcMem)
	entityID, create := createEntity(t, ctx, srcPipeline, srcMem, entitytest.LWWOp("title", "v0"))
	_ = create

	sp, err := srcPipeline.spaceFor(testCollection)
	require.NoError(err)
	srcEnt, err := sp.Get(ctx, entityID)
	require.NoError(err)
	snap := srcEnt.Snapshot()

	dstMem := store.NewMemory(false)
	dstPipeline := newTestPipeline(dstMem)

	res, err := dstPipeline.ApplyState(ctx, dstMem, testCollection, event.Attested[store.Snapshot]{Value: snap})
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	dstSp, err := dstPipeline.spaceFor(testCollection)
	require.NoError(err)
	dstEnt, err := dstSp.Get(ctx, entityID)
	require.NoError(err)
	require.True(dstEnt.Head().Equal(snap.Head))
	val, ok := dstEnt.Property("title")
	require.True(ok)
	require.Equal("v0", string(val))
}

// --- apply_state: a state strictly behind the local head is a no-op ---

func TestApplyStateBehindLocalIsNoop(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "v0"))
	staleSnap := store.Snapshot{EntityID: entityID, CollectionID: testCollection, Head: clock.Of(create.ID()), Properties: map[string]store.BackendState{}}

	child := entitytest.ChildEvent(entityID, testCollection, clock.Of(create.ID()), entitytest.LWWOp("title", "v1"))
	res, err := p.ApplyEvent(ctx, mem, child)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	res, err = p.ApplyState(ctx, mem, testCollection, event.Attested[store.Snapshot]{Value: staleSnap})
	require.NoError(err)
	require.Equal(AlreadyPresent, res.Outcome)

	sp, err := p.spaceFor(testCollection)
	require.NoError(err)
	ent, err := sp.Get(ctx, entityID)
	require.NoError(err)
	val, _ := ent.Property("title")
	require.Equal("v1", string(val))
}

// --- apply_state: a state diverged from local concurrent history is rejected ---

func TestApplyStateDivergedRejected(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, create := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "v0"))
	local := entitytest.ChildEvent(entityID, testCollection, clock.Of(create.ID()), entitytest.LWWOp("title", "local"))
	res, err := p.ApplyEvent(ctx, mem, local)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	remote := entitytest.ChildEvent(entityID, testCollection, clock.Of(create.ID()), entitytest.LWWOp("title", "remote"))
	require.NoError(mem.CommitEvent(ctx, event.Attested[*event.Event]{Value: remote}))

	concurrentSnap := store.Snapshot{
		EntityID:     entityID,
		CollectionID: testCollection,
		Head:         clock.Of(remote.ID()),
		Properties:   map[string]store.BackendState{},
	}
	res, err = p.ApplyState(ctx, mem, testCollection, event.Attested[store.Snapshot]{Value: concurrentSnap})
	require.NoError(err)
	require.Equal(Rejected, res.Outcome)
	require.ErrorIs(res.Reason, ErrDisjoint)
}

// --- Local transaction API: Set/commit round trip, repeated Set overwrites ---

func TestLocalTransactionCommit(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	tx := p.BeginCreateTransaction(testCollection)
	require.NoError(tx.Set("title", "lww", []byte("first")))
	require.NoError(tx.Set("title", "lww", []byte("final")))
	require.NoError(tx.Set("count", "counter", encodeCounter(3)))

	ev, res, err := p.CommitLocalTransaction(ctx, mem, tx)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)
	require.True(ev.IsCreate())
	require.Len(ev.Operations, 2)
	// Deterministic ordering by property name regardless of Set call order.
	require.Equal("count", ev.Operations[0].Property)
	require.Equal("title", ev.Operations[1].Property)

	entityID := entitytest.ResolvedEntityID(ev)
	sp, err := p.spaceFor(testCollection)
	require.NoError(err)
	ent, err := sp.Get(ctx, entityID)
	require.NoError(err)
	title, _ := ent.Property("title")
	require.Equal("final", string(title))
}

// --- An empty local transaction commits as a no-op, minting no event. ---

func TestLocalTransactionEmptyCommitIsNoop(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	tx := p.BeginCreateTransaction(testCollection)
	ev, res, err := p.CommitLocalTransaction(ctx, mem, tx)
	require.NoError(err)
	require.Equal(AlreadyPresent, res.Outcome)
	require.Nil(ev)
}

// --- Set against an existing entity diffs against its live value, and a
// no-op desired value produces no operation at all. ---

func TestLocalTransactionAgainstExistingEntityDiffsBaseline(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mem := store.NewMemory(true)
	p := newTestPipeline(mem)

	entityID, _ := createEntity(t, ctx, p, mem, entitytest.LWWOp("title", "v0"))

	tx, err := p.BeginLocalTransaction(ctx, testCollection, entityID)
	require.NoError(err)
	require.NoError(tx.Set("title", "lww", []byte("v0"))) // unchanged: no-op
	_, res, err := p.CommitLocalTransaction(ctx, mem, tx)
	require.NoError(err)
	require.Equal(AlreadyPresent, res.Outcome)

	tx2, err := p.BeginLocalTransaction(ctx, testCollection, entityID)
	require.NoError(err)
	require.NoError(tx2.Set("title", "lww", []byte("v1")))
	_, res, err = p.CommitLocalTransaction(ctx, mem, tx2)
	require.NoError(err)
	require.Equal(Applied, res.Outcome)

	sp, err := p.spaceFor(testCollection)
	require.NoError(err)
	ent, err := sp.Get(ctx, entityID)
	require.NoError(err)
	val, _ := ent.Property("title")
	require.Equal("v1", string(val))
}

func encodeCounter(delta int64) []byte {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(delta)
		delta >>= 8
	}
	return buf[:]
}
