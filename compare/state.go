// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package compare

import (
	"context"
	"errors"

	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/id"
	"github.com/ankurah/ankurah-sub003/internal/set"
	"github.com/ankurah/ankurah-sub003/metrics"
	"github.com/ankurah/ankurah-sub003/store"
)

// side distinguishes the two directions of the bidirectional walk.
type side int

const (
	subjectSide side = iota
	comparisonSide
)

// node tracks what the traversal currently knows about one event id.
type node struct {
	seenFromSubject    bool
	seenFromComparison bool
	commonChildCount   int
	isMeetCandidate    bool
	childCountApplied  bool
	fetched            bool
	queuedSubject      bool
	queuedComparison   bool
	parents            []id.EventId
}

// state is the resumable traversal: two frontiers, the per-node visibility
// table, and the shared accumulator. A single state value is reused across
// budget escalations so that repeated calls never re-fetch an event.
type state struct {
	subjectHeads     set.Set[id.EventId]
	comparisonHeads  set.Set[id.EventId]
	subjectQueue     []id.EventId
	comparisonQueue  []id.EventId
	nodes            map[id.EventId]*node
	accumulator      Accumulator
	fetchCount       int
	decSubjectHeads  set.Set[id.EventId] // heads already counted toward unseenSubjectHeads--
	decComparHeads   set.Set[id.EventId]
	unseenSubjectHds int
	unseenComparHds  int
}

func newState(subject, comparison clock.Clock) *state {
	s := &state{
		subjectHeads:    set.Of(subject.List()...),
		comparisonHeads: set.Of(comparison.List()...),
		nodes:           make(map[id.EventId]*node),
		accumulator:     make(Accumulator),
		decSubjectHeads: set.Of[id.EventId](),
		decComparHeads:  set.Of[id.EventId](),
	}
	s.unseenSubjectHds = s.subjectHeads.Len()
	s.unseenComparHds = s.comparisonHeads.Len()

	for _, h := range subject.List() {
		n := s.ensureNode(h)
		n.seenFromSubject = true
		s.enqueue(subjectSide, h)
	}
	for _, h := range comparison.List() {
		n := s.ensureNode(h)
		n.seenFromComparison = true
		s.enqueue(comparisonSide, h)
	}
	// Heads present in both frontiers are trivially seen by the other
	// side from the start.
	for _, h := range subject.List() {
		if s.comparisonHeads.Contains(h) {
			s.markSeen(h, subjectSide)
			s.markSeen(h, comparisonSide)
		}
	}
	return s
}

func (s *state) ensureNode(eid id.EventId) *node {
	n, ok := s.nodes[eid]
	if !ok {
		n = &node{}
		s.nodes[eid] = n
	}
	return n
}

func (s *state) enqueue(sd side, eid id.EventId) {
	n := s.ensureNode(eid)
	if n.fetched {
		return
	}
	switch sd {
	case subjectSide:
		if !n.queuedSubject {
			n.queuedSubject = true
			s.subjectQueue = append(s.subjectQueue, eid)
		}
	case comparisonSide:
		if !n.queuedComparison {
			n.queuedComparison = true
			s.comparisonQueue = append(s.comparisonQueue, eid)
		}
	}
}

// markSeen sets the seen-from flag for sd on eid and performs the head
// visibility bookkeeping: decrementing the opposing counter exactly once
// when an original head of the OTHER frontier becomes seen.
func (s *state) markSeen(eid id.EventId, sd side) {
	n := s.ensureNode(eid)
	switch sd {
	case subjectSide:
		if n.seenFromSubject {
			return
		}
		n.seenFromSubject = true
		if s.comparisonHeads.Contains(eid) && !s.decComparHeads.Contains(eid) {
			s.decComparHeads.Add(eid)
			s.unseenComparHds--
		}
	case comparisonSide:
		if n.seenFromComparison {
			return
		}
		n.seenFromComparison = true
		if s.subjectHeads.Contains(eid) && !s.decSubjectHeads.Contains(eid) {
			s.decSubjectHeads.Add(eid)
			s.unseenSubjectHds--
		}
	}
}

func (s *state) done() bool {
	if s.unseenSubjectHds <= 0 || s.unseenComparHds <= 0 {
		return true
	}
	return len(s.subjectQueue) == 0 && len(s.comparisonQueue) == 0
}

// run drains the frontiers until a clean termination condition is met or
// budgetLimit fetches have been spent in total across this state's
// lifetime. reg may be nil.
func (s *state) run(ctx context.Context, retriever store.Retriever, budgetLimit int, reg *metrics.Registry) (Relation, error) {
	for !s.done() {
		if s.fetchCount >= budgetLimit {
			return Relation{}, ErrBudgetExceeded
		}
		if err := ctx.Err(); err != nil {
			return Relation{}, err
		}

		sd, cur, ok := s.pop()
		if !ok {
			break
		}
		n := s.nodes[cur]
		if n.fetched {
			continue
		}

		ev, err := retriever.GetEvent(ctx, cur)
		if errors.Is(err, store.ErrNotFound) {
			// Dead end: this id can't be expanded further. It still
			// counts as visited so we don't spin on it.
			n.fetched = true
			continue
		}
		if err != nil {
			return Relation{}, err
		}

		n.fetched = true
		n.parents = ev.Parent.List()
		s.accumulator[cur] = n.parents
		s.fetchCount++
		if reg != nil {
			reg.Counter(metrics.CompareFetches, "events fetched during DAG comparison").Inc()
		}

		s.markSeen(cur, sd)
		s.updateMeetCandidate(n)
		if n.isMeetCandidate {
			s.applyCommonChildCount(n)
		}

		for _, p := range n.parents {
			pn := s.ensureNode(p)
			if n.seenFromSubject && !pn.seenFromSubject {
				s.markSeen(p, subjectSide)
			}
			if n.seenFromComparison && !pn.seenFromComparison {
				s.markSeen(p, comparisonSide)
			}
			s.updateMeetCandidate(pn)
			if pn.isMeetCandidate {
				s.applyCommonChildCount(pn)
			}
			if pn.seenFromSubject && !pn.fetched {
				s.enqueue(subjectSide, p)
			}
			if pn.seenFromComparison && !pn.fetched {
				s.enqueue(comparisonSide, p)
			}
		}
	}
	return s.classify(), nil
}

// updateMeetCandidate marks n as a meet candidate the moment both
// directions have proven ancestry through it, regardless of whether n has
// been fetched yet — a node can be proven common via propagation from a
// child before its own parents are known.
func (s *state) updateMeetCandidate(n *node) {
	if !n.isMeetCandidate && n.seenFromSubject && n.seenFromComparison {
		n.isMeetCandidate = true
	}
}

// applyCommonChildCount increments every parent of n's commonChildCount
// exactly once, deferred until n has actually been fetched (so its
// parents are known) even if it was marked a meet candidate earlier via
// propagation.
func (s *state) applyCommonChildCount(n *node) {
	if n.childCountApplied || !n.fetched {
		return
	}
	n.childCountApplied = true
	for _, p := range n.parents {
		s.ensureNode(p).commonChildCount++
	}
}

// pop removes and returns one id from the smaller non-empty frontier,
// preferring the subject side on ties — a deterministic tie-break so two
// identical calls always perform the same sequence of fetches.
func (s *state) pop() (side, id.EventId, bool) {
	ls, lc := len(s.subjectQueue), len(s.comparisonQueue)
	if ls == 0 && lc == 0 {
		return 0, id.EventId{}, false
	}
	var sd side
	if ls == 0 {
		sd = comparisonSide
	} else if lc == 0 {
		sd = subjectSide
	} else if ls <= lc {
		sd = subjectSide
	} else {
		sd = comparisonSide
	}
	if sd == subjectSide {
		cur := s.subjectQueue[0]
		s.subjectQueue = s.subjectQueue[1:]
		return sd, cur, true
	}
	cur := s.comparisonQueue[0]
	s.comparisonQueue = s.comparisonQueue[1:]
	return sd, cur, true
}

// classify derives the final Relation from the traversal's terminal
// state, per spec §4.2.2's termination table.
func (s *state) classify() Relation {
	if s.subjectHeads.Equals(s.comparisonHeads) {
		return Relation{Kind: Equal, Meet: clock.Of(s.subjectHeads.List()...)}
	}
	if s.unseenSubjectHds <= 0 && s.unseenComparHds > 0 {
		// Subject is wholly an ancestor of comparison: subject's own heads
		// are themselves the meet (the deepest common ancestor frontier).
		return Relation{Kind: StrictAscends, Meet: clock.Of(s.subjectHeads.List()...)}
	}
	if s.unseenComparHds <= 0 && s.unseenSubjectHds > 0 {
		return Relation{Kind: StrictDescends, Meet: clock.Of(s.comparisonHeads.List()...)}
	}

	meetIDs := make([]id.EventId, 0)
	for eid, n := range s.nodes {
		if n.isMeetCandidate && n.commonChildCount == 0 {
			if _, fetched := s.accumulator[eid]; !fetched {
				// A dead end was never retrieved: nothing is known of it,
				// so it cannot serve as a common ancestor.
				continue
			}
			meetIDs = append(meetIDs, eid)
		}
	}
	if len(meetIDs) == 0 {
		return Relation{Kind: Disjoint}
	}
	meet := clock.Of(meetIDs...)
	// Degenerate meets collapse to a strict relation rather than being
	// reported as a divergence (spec §4.2.4).
	if meet.Equal(clock.Of(s.subjectHeads.List()...)) {
		return Relation{Kind: StrictAscends, Meet: meet}
	}
	if meet.Equal(clock.Of(s.comparisonHeads.List()...)) {
		return Relation{Kind: StrictDescends, Meet: meet}
	}
	return Relation{Kind: DivergedSince, Meet: meet}
}
