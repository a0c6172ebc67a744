// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package entity

// Outcome is the three-way result apply_event/apply_state always produce
// (spec §4.5.1, §7): the pipeline never returns a partially-applied state.
type Outcome int

const (
	// Applied means the event (or state) was integrated, whether or not
	// the head actually moved.
	Applied Outcome = iota
	// AlreadyPresent means the event was already known; a pure no-op.
	AlreadyPresent
	// Rejected means the event was refused outright; Reason names why.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "Applied"
	case AlreadyPresent:
		return "AlreadyPresent"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Result is the pipeline's verdict on one apply_event/apply_state call.
// Reason is only meaningful when Outcome is Rejected.
type Result struct {
	Outcome Outcome
	Reason  error
}
