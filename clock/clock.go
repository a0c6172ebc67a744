// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package clock implements the antichain frontier ("Clock") described in
// spec §3.3: the minimal set of tips that together causally dominate
// everything an entity has observed. C1's contract (spec §4.1) keeps this
// arithmetic deliberately small — membership and a set-level union;
// ancestry-aware pruning is C5's job, after layer application, and lives in
// package entity.
package clock

import (
	"sort"

	"github.com/ankurah/ankurah-sub003/id"
	"github.com/ankurah/ankurah-sub003/internal/set"
)

// Clock is an antichain of event ids — an entity's head. The empty Clock
// represents the pre-creation state (spec §3.3).
type Clock struct {
	tips set.Set[id.EventId]
}

// Empty returns the pre-creation clock.
func Empty() Clock {
	return Clock{tips: set.Set[id.EventId]{}}
}

// Of returns a Clock containing exactly the given ids.
func Of(ids ...id.EventId) Clock {
	return Clock{tips: set.Of(ids...)}
}

// IsEmpty reports whether the clock has no members.
func (c Clock) IsEmpty() bool {
	return c.tips.Len() == 0
}

// Len returns the number of tips in the clock.
func (c Clock) Len() int {
	return c.tips.Len()
}

// Contains reports whether eid is a member of the clock.
func (c Clock) Contains(eid id.EventId) bool {
	return c.tips.Contains(eid)
}

// SoleMember returns the clock's single member and true, iff the clock has
// exactly one tip (spec §4.5.3's creation-event guard relies on this).
func (c Clock) SoleMember() (id.EventId, bool) {
	if c.tips.Len() != 1 {
		return id.EventId{}, false
	}
	for e := range c.tips {
		return e, true
	}
	panic("unreachable")
}

// List returns the clock's members in deterministic lexicographic order.
func (c Clock) List() []id.EventId {
	out := c.tips.List()
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Equal reports whether two clocks contain the same set of ids.
func (c Clock) Equal(o Clock) bool {
	return c.tips.Equals(o.tips)
}

// Union returns the set-level union of two clocks. This is NOT
// antichain-pruned — per spec §4.1, pruning non-minimal members belongs to
// C5 once ancestry (an Accumulator) is available. Callers that need a
// proper post-merge head should use entity's head-advancement logic
// instead of this directly.
func (c Clock) Union(o Clock) Clock {
	return Clock{tips: c.tips.Union(o.tips)}
}

// Without returns a copy of c with the given ids removed.
func (c Clock) Without(ids ...id.EventId) Clock {
	cloned := c.tips.Clone()
	cloned.Remove(ids...)
	return Clock{tips: cloned}
}

// With returns a copy of c with the given ids added.
func (c Clock) With(ids ...id.EventId) Clock {
	cloned := c.tips.Clone()
	cloned.Add(ids...)
	return Clock{tips: cloned}
}

// String renders the clock's members in sorted order, each as the first eight hex digits of its id, e.g.
// "{ab12cd34, ef567890}".
func (c Clock) String() string {
	members := c.List()
	if len(members) == 0 {
		return "{}"
	}
	s := "{"
	for i, m := range members {
		if i > 0 {
			s += ", "
		}
		s += m.String()[:8]
	}
	return s + "}"
}
