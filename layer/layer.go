// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package layer partitions the events between a meet and one or more
// target frontiers into an ordered sequence of mutually-concurrent
// layers, grounded on the teacher's DAG ancestry walk in dag/dag.go and
// the Parents()-based vertex traversal in engine/dag/vertex/vertex.go,
// but reshaped for two-sided already-applied/to-apply tagging instead of
// single-DAG traversal order.
package layer

import (
	"errors"
	"sort"

	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/compare"
	"github.com/ankurah/ankurah-sub003/id"
	"github.com/ankurah/ankurah-sub003/internal/set"
)

// ErrIncompleteAncestry is returned when the accumulator does not cover
// every edge between the meet and the target frontiers — the traversal
// that produced it must have been run with too small a budget, or over
// the wrong pair of clocks.
var ErrIncompleteAncestry = errors.New("layer: accumulator does not cover the requested ancestry")

// Layer is one topological step: a maximal set of events with no causal
// edges between them, each tagged by whether it was already reflected in
// the entity's current head (AlreadyApplied) or is new material the
// backend merge policy must fold in (ToApply). Dag is the accumulator the
// layer was sliced from, shared by reference across every layer the
// iterator yields.
type Layer struct {
	AlreadyApplied []id.EventId
	ToApply        []id.EventId
	Dag            compare.Accumulator
}

// Iterator yields layers in topological order: every event in a layer has
// all of its in-window parents resolved by a prior layer (or by the meet
// itself, which is never re-emitted).
type Iterator struct {
	dag            compare.Accumulator
	order          [][]id.EventId // precomputed layers, events sorted within each
	alreadyApplied set.Set[id.EventId]
	pos            int
}

// NewIterator builds the full layer ordering between meet and the union
// of currentHead and newHeads, using acc as the ancestry window. acc must
// have been produced by a compare.Compare(Of(meet members)-adjacent
// clocks) call (or escalated equivalent) wide enough to cover every event
// strictly between meet and the targets; ErrIncompleteAncestry signals
// that it wasn't.
func NewIterator(meet, currentHead, newHeads clock.Clock, acc compare.Accumulator) (*Iterator, error) {
	targets := currentHead.Union(newHeads)

	window, err := ancestryWindow(targets, meet, acc)
	if err != nil {
		return nil, err
	}

	alreadyApplied, err := ancestryWindow(currentHead, meet, acc)
	if err != nil {
		return nil, err
	}
	// currentHead's own tips are themselves already-applied, even though
	// ancestryWindow (which walks strictly through parent edges) only
	// captures their ancestors.
	for _, h := range currentHead.List() {
		if window.Contains(h) {
			alreadyApplied.Add(h)
		}
	}

	childrenIndex := make(map[id.EventId][]id.EventId, window.Len())
	inDegree := make(map[id.EventId]int, window.Len())
	for eid := range window {
		inDegree[eid] = 0
	}
	for eid := range window {
		parents, _ := acc.Parents(eid)
		for _, p := range parents {
			if window.Contains(p) {
				childrenIndex[p] = append(childrenIndex[p], eid)
				inDegree[eid]++
			}
		}
	}

	it := &Iterator{dag: acc, alreadyApplied: alreadyApplied}

	ready := make([]id.EventId, 0)
	for eid, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, eid)
		}
	}
	sortIDs(ready)

	remaining := window.Len()
	for remaining > 0 {
		if len(ready) == 0 {
			// A positive in-degree remains for every unresolved node: the
			// window references a parent never visited by the traversal.
			return nil, ErrIncompleteAncestry
		}
		layer := make([]id.EventId, len(ready))
		copy(layer, ready)
		it.order = append(it.order, layer)
		remaining -= len(ready)

		next := make([]id.EventId, 0)
		for _, eid := range ready {
			for _, child := range childrenIndex[eid] {
				inDegree[child]--
				if inDegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		sortIDs(next)
		ready = next
	}

	return it, nil
}

// Next returns the next layer and true, or a zero Layer and false once
// every event in the window has been yielded.
func (it *Iterator) Next() (Layer, bool) {
	if it.pos >= len(it.order) {
		return Layer{}, false
	}
	ids := it.order[it.pos]
	it.pos++

	layer := Layer{Dag: it.dag}
	for _, eid := range ids {
		if it.alreadyApplied.Contains(eid) {
			layer.AlreadyApplied = append(layer.AlreadyApplied, eid)
		} else {
			layer.ToApply = append(layer.ToApply, eid)
		}
	}
	return layer, true
}

// Remaining reports how many layers are left, including the one Next
// would return.
func (it *Iterator) Remaining() int {
	return len(it.order) - it.pos
}

// ancestryWindow returns every event strictly between meet and heads
// (heads' own ancestors, excluding meet's members and anything beyond
// them), by walking acc's parent edges backward from heads. A parent id
// missing from acc that is also not a meet member means the accumulator
// is incomplete for this request.
func ancestryWindow(heads, meet clock.Clock, acc compare.Accumulator) (set.Set[id.EventId], error) {
	window := set.Of[id.EventId]()
	meetSet := set.Of(meet.List()...)

	frontier := append([]id.EventId{}, heads.List()...)
	visited := set.Of[id.EventId]()
	for len(frontier) > 0 {
		cur := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if visited.Contains(cur) {
			continue
		}
		visited.Add(cur)
		if meetSet.Contains(cur) {
			continue
		}
		window.Add(cur)

		parents, ok := acc.Parents(cur)
		if !ok {
			return nil, ErrIncompleteAncestry
		}
		for _, p := range parents {
			if !visited.Contains(p) {
				frontier = append(frontier, p)
			}
		}
	}
	return window, nil
}

func sortIDs(ids []id.EventId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
