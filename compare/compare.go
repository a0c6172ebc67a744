// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package compare implements the bounded bidirectional traversal that
// decides how two event frontiers relate causally, grounded on the
// teacher's own bounded ancestry walk in dag/dag.go and
// dag/witness/cache.go and the vertex traversal in
// engine/dag/vertex/vertex.go, but reshaped around event-DAG ancestry
// instead of vertex/witness confidence tracking.
package compare

import (
	"context"
	"errors"

	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/config"
	"github.com/ankurah/ankurah-sub003/id"
	"github.com/ankurah/ankurah-sub003/internal/set"
	"github.com/ankurah/ankurah-sub003/logger"
	"github.com/ankurah/ankurah-sub003/metrics"
	"github.com/ankurah/ankurah-sub003/store"
)

// ErrBudgetExceeded is returned when the traversal exhausts its fetch
// budget before reaching a clean termination condition.
var ErrBudgetExceeded = errors.New("compare: budget exceeded")

// Kind enumerates the possible causal relations between a subject and
// comparison frontier.
type Kind int

const (
	// Equal means the two frontiers reference the identical event set.
	Equal Kind = iota
	// StrictDescends means the subject is a strict causal descendant of
	// the comparison frontier: every comparison head is reachable by
	// walking backward from some subject head.
	StrictDescends
	// StrictAscends is the mirror of StrictDescends: the subject is a
	// strict causal ancestor of the comparison frontier.
	StrictAscends
	// DivergedSince means the two frontiers share ancestry but neither
	// descends from the other; Meet holds their deepest common
	// ancestors.
	DivergedSince
	// Disjoint means no common ancestry was found within the traversal
	// budget.
	Disjoint
)

func (k Kind) String() string {
	switch k {
	case Equal:
		return "Equal"
	case StrictDescends:
		return "StrictDescends"
	case StrictAscends:
		return "StrictAscends"
	case DivergedSince:
		return "DivergedSince"
	case Disjoint:
		return "Disjoint"
	default:
		return "Unknown"
	}
}

// Relation is the result of comparing a subject frontier against a
// comparison frontier. Meet is only populated for DivergedSince.
type Relation struct {
	Kind Kind
	Meet clock.Clock
}

// Accumulator records every parent edge discovered during a traversal,
// keyed by event id. It is the shared ancestry window C3's layering and
// C2's IsDescendant both read from — built once, by reference, never
// copied wholesale.
type Accumulator map[id.EventId][]id.EventId

// Parents returns the recorded parents of eventID and whether it was
// observed during the traversal at all.
func (a Accumulator) Parents(eventID id.EventId) ([]id.EventId, bool) {
	p, ok := a[eventID]
	return p, ok
}

// IsDescendant reports whether x is a strict or non-strict descendant of
// y, walking backward through the parent edges recorded in acc. A parent
// id absent from acc is treated as a dead end, never as "is a descendant
// of everything" (spec: parent-outside-DAG tolerance) — this under-
// approximates ancestry for events outside the accumulator's window
// rather than risking a false positive.
func IsDescendant(acc Accumulator, x, y id.EventId) bool {
	if x == y {
		return true
	}
	visited := set.Of[id.EventId]()
	frontier := []id.EventId{x}
	for len(frontier) > 0 {
		cur := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if visited.Contains(cur) {
			continue
		}
		visited.Add(cur)
		parents, ok := acc.Parents(cur)
		if !ok {
			continue
		}
		for _, p := range parents {
			if p == y {
				return true
			}
			if !visited.Contains(p) {
				frontier = append(frontier, p)
			}
		}
	}
	return false
}

// Compare runs a single bounded-budget traversal comparing subject
// against comparison, fetching events through retriever. It never
// escalates the budget itself; CompareWithEscalation wraps this in the
// retry policy described by spec §4.2.3.
func Compare(ctx context.Context, retriever store.Retriever, subject, comparison clock.Clock, budget int) (Relation, Accumulator, error) {
	st := newState(subject, comparison)
	rel, err := st.run(ctx, retriever, budget, nil)
	return rel, st.accumulator, err
}

// CompareWithEscalation runs Compare, retrying with a larger budget (per
// cfg) on ErrBudgetExceeded while reusing the partial traversal state
// (frontiers and accumulator) from the failed attempt instead of
// restarting from scratch — spec §4.2.3 describes the contract
// ("resumable by re-invocation with a larger budget"); this is the
// efficient implementation of that contract.
func CompareWithEscalation(ctx context.Context, retriever store.Retriever, subject, comparison clock.Clock, cfg config.Budget, reg *metrics.Registry, log logger.Logger) (Relation, Accumulator, error) {
	if reg == nil {
		reg = metrics.NewNoOp()
	}
	if log == nil {
		log = logger.NewNop()
	}

	st := newState(subject, comparison)
	for attempt := 0; ; attempt++ {
		limit, ok := cfg.Escalated(attempt)
		if !ok {
			reg.Counter(metrics.BudgetExceededTotal, "comparisons that exhausted every escalation").Inc()
			log.Warn("compare budget exhausted across every escalation",
				logger.Int("attempt", attempt), logger.Int("limit", limit))
			return Relation{}, st.accumulator, ErrBudgetExceeded
		}
		rel, err := st.run(ctx, retriever, limit, reg)
		if err == nil {
			return rel, st.accumulator, nil
		}
		if !errors.Is(err, ErrBudgetExceeded) {
			return Relation{}, st.accumulator, err
		}
		if attempt < cfg.MaxEscalations {
			reg.Counter(metrics.BudgetEscalatedTotal, "comparisons retried with a larger budget").Inc()
			log.Debug("compare budget exceeded, escalating",
				logger.Int("attempt", attempt), logger.Err(err))
		}
	}
}
