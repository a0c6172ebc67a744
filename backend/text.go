// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package backend

import (
	"encoding/binary"
	"sort"

	"github.com/ankurah/ankurah-sub003/compare"
	"github.com/ankurah/ankurah-sub003/event"
	"github.com/ankurah/ankurah-sub003/id"
)

func init() {
	Default.Register("text", func() Backend { return NewText() })
}

// fragment is one writer's contribution to a Text value: a stable
// position key plus the text inserted there.
type fragment struct {
	posKey string
	writer id.EventId
	text   []byte
}

// Text is a commutative, operation-based sequence backend: every
// operation inserts a fragment at a caller-chosen fractional position
// key. The resolved value is the concatenation of every fragment ever
// applied, ordered by (posKey, writer id) — a total order independent of
// application order, so — like Counter — fragments can be folded in any
// sequence (spec §4.4).
type Text struct {
	fragments []fragment
}

// NewText returns an empty Text backend.
func NewText() *Text { return &Text{} }

func (t *Text) Value() []byte {
	out := make([]byte, 0)
	for _, f := range t.sorted() {
		out = append(out, f.text...)
	}
	return out
}

func (t *Text) sorted() []fragment {
	out := append([]fragment(nil), t.fragments...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].posKey != out[j].posKey {
			return out[i].posKey < out[j].posKey
		}
		return out[i].writer.Less(out[j].writer)
	})
	return out
}

func (t *Text) ApplyLayer(writes []Write, _ compare.Accumulator) (bool, error) {
	changed := false
	for _, w := range writes {
		if !w.IsNew {
			// Already among the fragments.
			continue
		}
		f, err := decodeFragment(w.Op.Bytes)
		if err != nil {
			return false, err
		}
		f.writer = w.EventID
		t.fragments = append(t.fragments, f)
		changed = true
	}
	return changed, nil
}

// Diff appends the entirety of desired as a single fragment positioned
// after every existing fragment, so the resulting value is the current
// text followed by desired, not desired alone; it reports false only when
// desired is empty. Richer position-key allocation (for
// concurrent mid-document inserts) is left to the caller, which knows
// the edit's intended location; Text only guarantees commutative merge
// of whatever position keys it's given.
func (t *Text) Diff(desired []byte) (event.Operation, bool) {
	if len(desired) == 0 {
		return event.Operation{}, false
	}
	posKey := nextPosKey(t.sorted())
	return event.Operation{Backend: "text", Bytes: encodeFragment(posKey, desired)}, true
}

func nextPosKey(sorted []fragment) string {
	if len(sorted) == 0 {
		return "m"
	}
	return sorted[len(sorted)-1].posKey + "m"
}

func encodeFragment(posKey string, text []byte) []byte {
	buf := make([]byte, 0, 2+len(posKey)+4+len(text))
	var keyLen [2]byte
	binary.BigEndian.PutUint16(keyLen[:], uint16(len(posKey)))
	buf = append(buf, keyLen[:]...)
	buf = append(buf, posKey...)
	var textLen [4]byte
	binary.BigEndian.PutUint32(textLen[:], uint32(len(text)))
	buf = append(buf, textLen[:]...)
	return append(buf, text...)
}

func decodeFragment(b []byte) (fragment, error) {
	if len(b) < 2 {
		return fragment{}, event.ErrDecode
	}
	keyLen := binary.BigEndian.Uint16(b[:2])
	rest := b[2:]
	if uint64(len(rest)) < uint64(keyLen)+4 {
		return fragment{}, event.ErrDecode
	}
	posKey := string(rest[:keyLen])
	rest = rest[keyLen:]
	textLen := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint64(len(rest)) < uint64(textLen) {
		return fragment{}, event.ErrDecode
	}
	return fragment{posKey: posKey, text: append([]byte(nil), rest[:textLen]...)}, nil
}

func (t *Text) Serialize() []byte {
	buf := make([]byte, 0)
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(t.fragments)))
	buf = append(buf, countBuf[:]...)
	for _, f := range t.sorted() {
		buf = append(buf, encodeFragment(f.posKey, f.text)...)
		buf = append(buf, f.writer.Bytes()...)
	}
	return buf
}

func (t *Text) Deserialize(b []byte) error {
	if len(b) < 4 {
		return event.ErrDecode
	}
	count := binary.BigEndian.Uint32(b[:4])
	rest := b[4:]
	fragments := make([]fragment, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < 2 {
			return event.ErrDecode
		}
		keyLen := binary.BigEndian.Uint16(rest[:2])
		frameLen := 2 + int(keyLen) + 4
		if len(rest) < frameLen {
			return event.ErrDecode
		}
		textLen := binary.BigEndian.Uint32(rest[2+int(keyLen):frameLen])
		frameLen += int(textLen)
		if len(rest) < frameLen+32 {
			return event.ErrDecode
		}
		f, err := decodeFragment(rest[:frameLen])
		if err != nil {
			return err
		}
		writer, ok := id.EventIdFromBytes(rest[frameLen : frameLen+32])
		if !ok {
			return event.ErrDecode
		}
		f.writer = writer
		fragments = append(fragments, f)
		rest = rest[frameLen+32:]
	}
	t.fragments = fragments
	return nil
}
