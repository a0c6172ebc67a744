// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package entity

import "errors"

// Terminal rejection reasons (spec §7): a Rejected outcome never leaves
// the entity in a partially-applied state, and the core never retries
// these — they propagate to the caller verbatim.
var (
	// ErrDisjoint means compare found no common ancestry within budget;
	// ApplyState also returns it for a snapshot that has diverged from the
	// local head.
	ErrDisjoint = errors.New("entity: events share no common ancestor")
	// ErrDuplicateCreation means a second creation event arrived for an
	// entity that already has a non-empty head.
	ErrDuplicateCreation = errors.New("entity: duplicate creation event")
	// ErrConcurrencyExhausted means the TOCTOU retry loop exhausted its
	// attempts without a clean commit.
	ErrConcurrencyExhausted = errors.New("entity: concurrency retries exhausted")
	// ErrPolicyRejected is reserved for collaborator-layer policy denials;
	// the core itself never returns it, but the taxonomy reserves the
	// slot so embedding applications can surface their own denials
	// through the same Result shape (spec §7).
	ErrPolicyRejected = errors.New("entity: rejected by policy")
)
