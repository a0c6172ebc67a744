// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package backend

import (
	"encoding/binary"

	"github.com/ankurah/ankurah-sub003/compare"
	"github.com/ankurah/ankurah-sub003/event"
)

func init() {
	Default.Register("counter", func() Backend { return NewCounter() })
}

// Counter is a commutative PN-counter backend: each operation carries a
// signed delta, and the merged total is simply the sum of every delta
// ever applied, regardless of the order layers (or events within a
// layer) are folded in — there is no causal-dominance step, unlike LWW
// (spec §4.4: "Counter and text backends, being commutative, simply
// apply events in any order").
type Counter struct {
	total int64
}

// NewCounter returns a Counter starting at zero.
func NewCounter() *Counter { return &Counter{} }

func (c *Counter) Value() []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(c.total))
	return buf[:]
}

func (c *Counter) ApplyLayer(writes []Write, _ compare.Accumulator) (bool, error) {
	changed := false
	for _, w := range writes {
		if !w.IsNew {
			// Already counted in total.
			continue
		}
		delta, err := decodeDelta(w.Op.Bytes)
		if err != nil {
			return false, err
		}
		c.total += delta
		changed = true
	}
	return changed, nil
}

// Diff returns the delta operation that moves the counter's current total
// to the desired total.
func (c *Counter) Diff(desired []byte) (event.Operation, bool) {
	desiredTotal, err := decodeDelta(desired)
	if err != nil || desiredTotal == c.total {
		return event.Operation{}, false
	}
	delta := desiredTotal - c.total
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(delta))
	return event.Operation{Backend: "counter", Bytes: buf[:]}, true
}

func (c *Counter) Serialize() []byte { return c.Value() }

func (c *Counter) Deserialize(b []byte) error {
	total, err := decodeDelta(b)
	if err != nil {
		return err
	}
	c.total = total
	return nil
}

func decodeDelta(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, event.ErrDecode
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}
