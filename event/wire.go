// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package event

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/id"
)

// ErrDecode is returned when event bytes are malformed. It is the only
// error C1 can produce (spec §4.1) — no other failure mode exists at this
// layer.
var ErrDecode = errors.New("event: malformed wire bytes")

// WireVersion identifies the wire format. There is currently one version;
// a future incompatible change bumps this the way codec.CurrentVersion
// does in the teacher's codec package.
const WireVersion uint8 = 1

// Serialize encodes e to the bit-stable binary format of spec §6.1:
//
//	entity_id || collection_id_length || collection_id_bytes ||
//	parent_count || parent_ids_concat || operations_count ||
//	(property_name_length || property_name || backend_name_length ||
//	 backend_name || op_bytes_length || op_bytes)*
//
// Lengths are big-endian. The event id itself is NOT included in the wire
// form — it is always re-derived via ComputeID on Deserialize, which is
// what makes round-trip law R1 (spec §8) meaningful.
func (e *Event) Serialize() []byte {
	buf := make([]byte, 0, 64+len(e.CollectionID)+32*e.Parent.Len())
	buf = append(buf, e.EntityID[:]...)
	buf = appendLenPrefixed32(buf, e.CollectionID)
	buf = appendParent(buf, e.Parent)
	buf = appendOperations(buf, e.Operations)
	return buf
}

// Deserialize decodes wire bytes into an Event and re-derives its id from
// the decoded fields, satisfying round-trip law R1: recomputed_id(decoded)
// == original_id whenever the bytes were produced by Serialize.
func Deserialize(b []byte) (*Event, error) {
	var e Event

	if len(b) < len(e.EntityID) {
		return nil, fmt.Errorf("%w: short entity id", ErrDecode)
	}
	copy(e.EntityID[:], b[:len(e.EntityID)])
	rest := b[len(e.EntityID):]

	collectionID, rest, err := readLenPrefixed32(rest)
	if err != nil {
		return nil, err
	}
	e.CollectionID = collectionID

	parent, rest, err := readParent(rest)
	if err != nil {
		return nil, err
	}
	e.Parent = parent

	ops, rest, err := readOperations(rest)
	if err != nil {
		return nil, err
	}
	e.Operations = ops

	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrDecode)
	}

	e.id = ComputeID(&e)
	return &e, nil
}

// canonicalOperations and canonicalParent feed ComputeID: the hash covers
// exactly the same byte layout Serialize/Deserialize round-trip, so the id
// is reproducible purely from decoded fields (spec §6.1).
func canonicalOperations(ops []Operation) []byte {
	return appendOperations(nil, ops)
}

func canonicalParent(c clock.Clock) []byte {
	return appendParent(nil, c)
}

func appendLenPrefixed32(buf []byte, data []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, data...)
}

func readLenPrefixed32(b []byte) (data []byte, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("%w: short length prefix", ErrDecode)
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(n) {
		return nil, nil, fmt.Errorf("%w: truncated payload", ErrDecode)
	}
	data = make([]byte, n)
	copy(data, b[:n])
	return data, b[n:], nil
}

func appendParent(buf []byte, c clock.Clock) []byte {
	members := c.List()
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(members)))
	buf = append(buf, countBuf[:]...)
	for _, m := range members {
		buf = append(buf, m[:]...)
	}
	return buf
}

func readParent(b []byte) (clock.Clock, []byte, error) {
	if len(b) < 4 {
		return clock.Clock{}, nil, fmt.Errorf("%w: short parent count", ErrDecode)
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	ids := make([]id.EventId, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(b) < 32 {
			return clock.Clock{}, nil, fmt.Errorf("%w: truncated parent id", ErrDecode)
		}
		var eid id.EventId
		copy(eid[:], b[:32])
		ids = append(ids, eid)
		b = b[32:]
	}
	return clock.Of(ids...), b, nil
}

func appendOperations(buf []byte, ops []Operation) []byte {
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(ops)))
	buf = append(buf, countBuf[:]...)
	for _, op := range ops {
		var propLen [2]byte
		binary.BigEndian.PutUint16(propLen[:], uint16(len(op.Property)))
		buf = append(buf, propLen[:]...)
		buf = append(buf, op.Property...)

		var nameLen [2]byte
		binary.BigEndian.PutUint16(nameLen[:], uint16(len(op.Backend)))
		buf = append(buf, nameLen[:]...)
		buf = append(buf, op.Backend...)

		var bytesLen [4]byte
		binary.BigEndian.PutUint32(bytesLen[:], uint32(len(op.Bytes)))
		buf = append(buf, bytesLen[:]...)
		buf = append(buf, op.Bytes...)
	}
	return buf
}

func readOperations(b []byte) ([]Operation, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("%w: short operations count", ErrDecode)
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	ops := make([]Operation, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(b) < 2 {
			return nil, nil, fmt.Errorf("%w: short property name length", ErrDecode)
		}
		propLen := binary.BigEndian.Uint16(b[:2])
		b = b[2:]
		if uint64(len(b)) < uint64(propLen) {
			return nil, nil, fmt.Errorf("%w: truncated property name", ErrDecode)
		}
		property := string(b[:propLen])
		b = b[propLen:]

		if len(b) < 2 {
			return nil, nil, fmt.Errorf("%w: short backend name length", ErrDecode)
		}
		nameLen := binary.BigEndian.Uint16(b[:2])
		b = b[2:]
		if uint64(len(b)) < uint64(nameLen) {
			return nil, nil, fmt.Errorf("%w: truncated backend name", ErrDecode)
		}
		name := string(b[:nameLen])
		b = b[nameLen:]

		if len(b) < 4 {
			return nil, nil, fmt.Errorf("%w: short op bytes length", ErrDecode)
		}
		opLen := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		if uint64(len(b)) < uint64(opLen) {
			return nil, nil, fmt.Errorf("%w: truncated op bytes", ErrDecode)
		}
		opBytes := make([]byte, opLen)
		copy(opBytes, b[:opLen])
		b = b[opLen:]

		ops = append(ops, Operation{Property: property, Backend: name, Bytes: opBytes})
	}
	return ops, b, nil
}
