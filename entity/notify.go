// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package entity

import (
	"github.com/ankurah/ankurah-sub003/id"
)

// PropertyChange names one property that actually changed value as a
// direct result of an apply (spec §6.5: the "(backend_name, property_name)"
// tuple a change notification carries per property).
type PropertyChange struct {
	Backend  string
	Property string
}

// Change is the notification the core emits on a successful apply (spec
// §6.5). Delivery is fire-and-forget from the core's perspective —
// subscribers are responsible for their own fan-out and backpressure.
type Change struct {
	EntityID       id.EntityId
	CollectionID   id.CollectionId
	AppliedEvents  []id.EventId
	PropertyChange []PropertyChange
}

// Notifier receives Change events as the pipeline produces them. Notify
// must not block the caller for long — the pipeline calls it after
// releasing the entity's write lock, but a slow Notifier still delays the
// apply_event call that produced the change.
type Notifier interface {
	Notify(Change)
}

// ChanNotifier is the reference Notifier: every Change is pushed onto a
// buffered channel, and dropped (never blocking the pipeline) if the
// channel is full. Grounded on the teacher's fire-and-forget event-bus
// idiom of preferring a dropped notification over a stalled producer.
type ChanNotifier struct {
	ch chan Change
}

// NewChanNotifier returns a ChanNotifier buffering up to capacity
// undelivered changes.
func NewChanNotifier(capacity int) *ChanNotifier {
	return &ChanNotifier{ch: make(chan Change, capacity)}
}

// Notify implements Notifier. A full channel drops the change rather than
// blocking the apply pipeline.
func (n *ChanNotifier) Notify(c Change) {
	select {
	case n.ch <- c:
	default:
	}
}

// C returns the channel Changes are delivered on.
func (n *ChanNotifier) C() <-chan Change { return n.ch }

// NopNotifier discards every Change; used when no subscriber is wired up.
type NopNotifier struct{}

func (NopNotifier) Notify(Change) {}
