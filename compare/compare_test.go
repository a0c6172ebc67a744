// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package compare

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/config"
	"github.com/ankurah/ankurah-sub003/event"
	"github.com/ankurah/ankurah-sub003/id"
	"github.com/ankurah/ankurah-sub003/store"
)

// chain builds n linear events on top of parent and stages them all,
// returning their ids oldest-first.
func chain(t *testing.T, mem *store.Memory, entityID id.EntityId, parent clock.Clock, n int) []id.EventId {
	t.Helper()
	ids := make([]id.EventId, 0, n)
	cur := parent
	for i := 0; i < n; i++ {
		e := event.New(entityID, id.CollectionId("c"), cur, []event.Operation{{Backend: "lww", Bytes: []byte{byte(i)}}})
		require.NoError(t, mem.StageEvent(context.Background(), e))
		require.NoError(t, mem.CommitEvent(context.Background(), event.Attested[*event.Event]{Value: e}))
		cur = clock.Of(e.ID())
		ids = append(ids, e.ID())
	}
	return ids
}

func TestCompareEqual(t *testing.T) {
	require := require.New(t)
	mem := store.NewMemory(true)
	ids := chain(t, mem, id.EntityId{0x01}, clock.Empty(), 3)
	head := clock.Of(ids[2])

	rel, _, err := Compare(context.Background(), mem, head, head, 1000)
	require.NoError(err)
	require.Equal(Equal, rel.Kind)
}

func TestCompareStrictDescends(t *testing.T) {
	require := require.New(t)
	mem := store.NewMemory(true)
	ids := chain(t, mem, id.EntityId{0x01}, clock.Empty(), 5)

	subject := clock.Of(ids[4])
	comparison := clock.Of(ids[1])
	rel, _, err := Compare(context.Background(), mem, subject, comparison, 1000)
	require.NoError(err)
	require.Equal(StrictDescends, rel.Kind)
}

func TestCompareStrictAscends(t *testing.T) {
	require := require.New(t)
	mem := store.NewMemory(true)
	ids := chain(t, mem, id.EntityId{0x01}, clock.Empty(), 5)

	subject := clock.Of(ids[1])
	comparison := clock.Of(ids[4])
	rel, _, err := Compare(context.Background(), mem, subject, comparison, 1000)
	require.NoError(err)
	require.Equal(StrictAscends, rel.Kind)
}

func TestCompareDiverged(t *testing.T) {
	require := require.New(t)
	mem := store.NewMemory(true)
	entityID := id.EntityId{0x01}
	root := chain(t, mem, entityID, clock.Empty(), 1)
	meetClock := clock.Of(root[0])

	a := event.New(entityID, id.CollectionId("c"), meetClock, []event.Operation{{Backend: "lww", Bytes: []byte("a")}})
	b := event.New(entityID, id.CollectionId("c"), meetClock, []event.Operation{{Backend: "lww", Bytes: []byte("b")}})
	ctx := context.Background()
	require.NoError(mem.StageEvent(ctx, a))
	require.NoError(mem.CommitEvent(ctx, event.Attested[*event.Event]{Value: a}))
	require.NoError(mem.StageEvent(ctx, b))
	require.NoError(mem.CommitEvent(ctx, event.Attested[*event.Event]{Value: b}))

	rel, acc, err := Compare(ctx, mem, clock.Of(a.ID()), clock.Of(b.ID()), 1000)
	require.NoError(err)
	require.Equal(DivergedSince, rel.Kind)
	require.True(rel.Meet.Equal(meetClock))
	require.True(IsDescendant(acc, a.ID(), root[0]))
	require.True(IsDescendant(acc, b.ID(), root[0]))
	require.False(IsDescendant(acc, a.ID(), b.ID()))
}

func TestCompareDisjoint(t *testing.T) {
	require := require.New(t)
	mem := store.NewMemory(true)
	a := chain(t, mem, id.EntityId{0x01}, clock.Empty(), 1)
	b := chain(t, mem, id.EntityId{0x02}, clock.Empty(), 1)

	rel, _, err := Compare(context.Background(), mem, clock.Of(a[0]), clock.Of(b[0]), 1000)
	require.NoError(err)
	require.Equal(Disjoint, rel.Kind)
}

func TestCompareBudgetExceededThenEscalates(t *testing.T) {
	require := require.New(t)
	mem := store.NewMemory(true)
	entityID := id.EntityId{0x01}
	root := chain(t, mem, entityID, clock.Empty(), 1)
	meetClock := clock.Of(root[0])

	// A deep chain on one side and a single diverging event on the
	// other: a tiny budget can't even reach the meet.
	aChain := chain(t, mem, entityID, meetClock, 1500)
	b := event.New(entityID, id.CollectionId("c"), meetClock, []event.Operation{{Backend: "lww", Bytes: []byte("b")}})
	ctx := context.Background()
	require.NoError(mem.StageEvent(ctx, b))
	require.NoError(mem.CommitEvent(ctx, event.Attested[*event.Event]{Value: b}))

	_, _, err := Compare(ctx, mem, clock.Of(aChain[len(aChain)-1]), clock.Of(b.ID()), 10)
	require.ErrorIs(err, ErrBudgetExceeded)

	rel, _, err := CompareWithEscalation(ctx, mem, clock.Of(aChain[len(aChain)-1]), clock.Of(b.ID()), config.DefaultBudget, nil, nil)
	require.NoError(err)
	require.Equal(DivergedSince, rel.Kind)
	require.True(rel.Meet.Equal(meetClock))
}

// TestCompareParentOutsideDAGIsDeadEnd exercises the parent-outside-DAG
// tolerance (spec §4.2.3): two events that structurally share a parent id
// the retriever never resolves must NOT be reported as having a common
// ancestor, since the traversal never confirms that id. A missing
// ancestor is an under-approximation (Disjoint), never a false descent.
func TestCompareParentOutsideDAGIsDeadEnd(t *testing.T) {
	require := require.New(t)
	mem := store.NewMemory(true)
	entityID := id.EntityId{0x01}

	ghost := clock.Of(id.EventId{0xEE})
	orphanA := event.New(entityID, id.CollectionId("c"), ghost, []event.Operation{{Backend: "lww", Bytes: []byte("a")}})
	orphanB := event.New(entityID, id.CollectionId("c"), ghost, []event.Operation{{Backend: "lww", Bytes: []byte("b")}})
	ctx := context.Background()
	require.NoError(mem.StageEvent(ctx, orphanA))
	require.NoError(mem.CommitEvent(ctx, event.Attested[*event.Event]{Value: orphanA}))
	require.NoError(mem.StageEvent(ctx, orphanB))
	require.NoError(mem.CommitEvent(ctx, event.Attested[*event.Event]{Value: orphanB}))

	rel, _, err := Compare(ctx, mem, clock.Of(orphanA.ID()), clock.Of(orphanB.ID()), 1000)
	require.NoError(err)
	require.Equal(Disjoint, rel.Kind)
}
