// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the few tunables the causal core exposes, in the
// same plain-struct style as the teacher's snow.Config/snow.Parameters —
// this module is embedded directly into a host process, not a standalone
// service, so there is no config-file parser here.
package config

// Budget controls the traversal budget for C2's DAG comparison (spec
// §4.2.3, §5). Default is a per-call parameter; Escalation and
// MaxEscalations bound the caller's retry-with-larger-budget policy.
type Budget struct {
	// Default is the traversal budget (event fetches) used on the first
	// comparison attempt.
	Default int
	// Escalation is the multiplier applied to the budget on retry.
	Escalation int
	// MaxEscalations bounds how many times the budget is escalated before
	// the error is surfaced to the caller (spec §4.2.3: "up to one
	// escalation").
	MaxEscalations int
}

// DefaultBudget matches the spec's recommended defaults (§5, §9: "This
// spec chooses 1000 with one 4x escalation").
var DefaultBudget = Budget{
	Default:        1000,
	Escalation:     4,
	MaxEscalations: 1,
}

// Escalated returns the budget for the nth escalation (n=0 is the initial
// attempt), or false once MaxEscalations has been exceeded.
func (b Budget) Escalated(attempt int) (int, bool) {
	if attempt > b.MaxEscalations {
		return 0, false
	}
	budget := b.Default
	for i := 0; i < attempt; i++ {
		budget *= b.Escalation
	}
	return budget, true
}

// TOCTOU controls the apply pipeline's optimistic-concurrency retry loop
// (spec §4.5.3 step 4, §4.5.6).
type TOCTOU struct {
	// MaxAttempts bounds the snapshot-compare-verify-commit loop before
	// ConcurrencyExhausted is returned.
	MaxAttempts int
}

// DefaultTOCTOU matches the spec's retry bound of 5 (§4.5.6).
var DefaultTOCTOU = TOCTOU{MaxAttempts: 5}

// EntityCache bounds the in-memory entity table (SPEC_FULL §12); this is
// ambient capacity management, not a core algorithm.
type EntityCache struct {
	// Size is the maximum number of materialized entities held per
	// collection before LRU eviction.
	Size int
}

// DefaultEntityCache is a reasonable default for an embedded, single-process
// node; the embedding application should size this to its working set.
var DefaultEntityCache = EntityCache{Size: 4096}
