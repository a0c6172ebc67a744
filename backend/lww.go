// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package backend

import (
	"encoding/binary"
	"sync"

	"github.com/ankurah/ankurah-sub003/compare"
	"github.com/ankurah/ankurah-sub003/event"
	"github.com/ankurah/ankurah-sub003/id"
	"github.com/ankurah/ankurah-sub003/logger"
	"github.com/ankurah/ankurah-sub003/metrics"
)

func init() {
	Default.Register("lww", func() Backend { return NewLWW() })
}

// observeMu guards the package-level metrics/logger LWW instances report
// their tie-break resolutions through. ApplyLayer's signature is fixed by
// the Backend interface (shared uniformly with Counter and Text), so a
// constructor-injected reg/log pair isn't an option without special-casing
// LWW's Constructor; a settable process-wide pair is the minimal way to
// get C4 tie-break observability (SPEC_FULL §10.1) without that.
var (
	observeMu  sync.RWMutex
	observeReg *metrics.Registry
	observeLog logger.Logger
)

// SetObservability wires the metrics registry and logger every LWW
// instance reports its tie-break resolutions through. Unset, both default
// to their no-op implementations.
func SetObservability(reg *metrics.Registry, log logger.Logger) {
	observeMu.Lock()
	defer observeMu.Unlock()
	observeReg = reg
	observeLog = log
}

func observability() (*metrics.Registry, logger.Logger) {
	observeMu.RLock()
	reg, log := observeReg, observeLog
	observeMu.RUnlock()
	if reg == nil {
		reg = metrics.NewNoOp()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return reg, log
}

// LWW is the default per-property merge policy (spec §4.4.1): the last
// writer wins, where "last" is decided per layer by a three-step ladder
// rather than per event, so the result never depends on delivery order:
//
//  1. No layer write touches this property — the incumbent value stands.
//  2. Exactly one candidate causally dominates every other candidate
//     (including the incumbent) — the dominating write wins. An incumbent
//     whose writer has no entry in the accumulator is dominated by every
//     layer write and drops out.
//  3. Two or more candidates are mutually concurrent — the write with the
//     lexicographically greatest event id wins.
type LWW struct {
	value  []byte
	writer id.EventId
	hasVal bool
}

// NewLWW returns an LWW backend with no value yet written.
func NewLWW() *LWW { return &LWW{} }

func (l *LWW) Value() []byte { return l.value }

func (l *LWW) ApplyLayer(writes []Write, acc compare.Accumulator) (bool, error) {
	if len(writes) == 0 {
		return false, nil
	}

	type candidate struct {
		id    id.EventId
		value []byte
		isNew bool
	}
	candidates := make([]candidate, 0, len(writes)+1)
	if l.hasVal {
		if _, inWindow := acc[l.writer]; inWindow {
			candidates = append(candidates, candidate{id: l.writer, value: l.value})
		}
	}
	for _, w := range writes {
		candidates = append(candidates, candidate{id: w.EventID, value: w.Op.Bytes, isNew: w.IsNew})
	}

	winner := candidates[0]
	for _, c := range candidates[1:] {
		if compare.IsDescendant(acc, c.id, winner.id) && !compare.IsDescendant(acc, winner.id, c.id) {
			winner = c
			continue
		}
		if compare.IsDescendant(acc, winner.id, c.id) {
			continue
		}
		// Mutually concurrent (or ancestry unknown to acc): lexicographic
		// tiebreak, greatest id wins.
		reg, log := observability()
		reg.Counter(metrics.LWWTieBreaksTotal, "LWW concurrent writes resolved by id tiebreak").Inc()
		if c.id.Compare(winner.id) > 0 {
			log.Debug("lww tie-break resolved",
				logger.String("winner", c.id.String()), logger.String("loser", winner.id.String()))
			winner = c
		} else {
			log.Debug("lww tie-break resolved",
				logger.String("winner", winner.id.String()), logger.String("loser", c.id.String()))
		}
	}

	l.value = winner.value
	l.writer = winner.id
	l.hasVal = true
	return winner.isNew, nil
}

// Diff returns the operation (sans Property, which the caller fills in —
// a backend instance doesn't know which property slot it's bound to)
// that carries desired as the new value, or false if desired already
// matches the current value.
func (l *LWW) Diff(desired []byte) (event.Operation, bool) {
	if l.hasVal && string(l.value) == string(desired) {
		return event.Operation{}, false
	}
	return event.Operation{Backend: "lww", Bytes: desired}, true
}

// Serialize encodes: has_value(1B) || writer_id(32B, zero if absent) ||
// value_length(4B BE) || value.
func (l *LWW) Serialize() []byte {
	buf := make([]byte, 0, 1+32+4+len(l.value))
	if l.hasVal {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, l.writer.Bytes()...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(l.value)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, l.value...)
}

func (l *LWW) Deserialize(b []byte) error {
	if len(b) < 1+32+4 {
		return event.ErrDecode
	}
	hasVal := b[0] == 1
	writer, ok := id.EventIdFromBytes(b[1:33])
	if !ok {
		return event.ErrDecode
	}
	n := binary.BigEndian.Uint32(b[33:37])
	rest := b[37:]
	if uint64(len(rest)) < uint64(n) {
		return event.ErrDecode
	}
	l.hasVal = hasVal
	l.writer = writer
	l.value = append([]byte(nil), rest[:n]...)
	return nil
}
