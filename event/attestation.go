// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package event

// Attestation is opaque, externally-verified evidence accompanying an
// event or state snapshot (spec §3.4). The core treats it as a byte
// payload and never inspects its contents; policy over attestations is
// delegated to the collaborator layer.
type Attestation []byte

// Empty reports whether the attestation carries no evidence.
func (a Attestation) Empty() bool {
	return len(a) == 0
}

// Attested pairs a value with its attestation. Used at the two places the
// core crosses the attested-evidence boundary: an incoming event (spec
// §4.5.1's apply_event) and a state snapshot (apply_state).
type Attested[T any] struct {
	Value       T
	Attestation Attestation
}
