// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"encoding/binary"
	"errors"

	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/id"
)

// ErrDecode is returned by DecodeSnapshot on malformed or truncated bytes.
var ErrDecode = errors.New("store: malformed snapshot")

// Snapshot is the on-disk shape of a materialized entity: its causal head
// plus the serialized state of every backend-managed property (spec §6.2).
// It is distinct from the event wire format (event.Serialize) — a
// snapshot is a point-in-time rollup, not a replayable log entry.
type Snapshot struct {
	EntityID     id.EntityId
	CollectionID id.CollectionId
	Head         clock.Clock
	// Properties maps property name to the backend name that owns it and
	// that backend's serialized state.
	Properties map[string]BackendState
}

// BackendState is one property's serialized backend state within a
// Snapshot.
type BackendState struct {
	Backend string
	Bytes   []byte
}

// Encode produces the bit-stable byte layout for a snapshot: entity_id ||
// collection_id_length(4B BE) || collection_id || head_count(4B BE) ||
// head_ids (sorted, 32B each) || property_count(4B BE) || repeated
// (name_length(2B BE) || name || backend_name_length(2B BE) ||
// backend_name || state_length(4B BE) || state_bytes), properties sorted
// by name for determinism.
func (s Snapshot) Encode() []byte {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sortStrings(names)

	heads := s.Head.List()

	buf := make([]byte, 0, 16+4+len(s.CollectionID)+4+32*len(heads)+64)
	buf = append(buf, s.EntityID.Bytes()...)
	buf = appendLenPrefixed32(buf, s.CollectionID)
	buf = appendU32(buf, uint32(len(heads)))
	for _, h := range heads {
		buf = append(buf, h.Bytes()...)
	}
	buf = appendU32(buf, uint32(len(names)))
	for _, name := range names {
		bs := s.Properties[name]
		buf = appendLenPrefixed16(buf, []byte(name))
		buf = appendLenPrefixed16(buf, []byte(bs.Backend))
		buf = appendLenPrefixed32(buf, bs.Bytes)
	}
	return buf
}

// DecodeSnapshot parses the Encode layout.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if len(b) < 16 {
		return s, ErrDecode
	}
	copy(s.EntityID[:], b[:16])
	rest := b[16:]

	collectionID, rest, err := readLenPrefixed32(rest)
	if err != nil {
		return s, err
	}
	s.CollectionID = id.CollectionId(collectionID)

	headCount, rest, err := readU32(rest)
	if err != nil {
		return s, err
	}
	heads := make([]id.EventId, 0, headCount)
	for i := uint32(0); i < headCount; i++ {
		if len(rest) < 32 {
			return s, ErrDecode
		}
		eid, ok := id.EventIdFromBytes(rest[:32])
		if !ok {
			return s, ErrDecode
		}
		heads = append(heads, eid)
		rest = rest[32:]
	}
	s.Head = clock.Of(heads...)

	propCount, rest, err := readU32(rest)
	if err != nil {
		return s, err
	}
	s.Properties = make(map[string]BackendState, propCount)
	for i := uint32(0); i < propCount; i++ {
		var nameBytes, backendBytes, stateBytes []byte
		nameBytes, rest, err = readLenPrefixed16(rest)
		if err != nil {
			return s, err
		}
		backendBytes, rest, err = readLenPrefixed16(rest)
		if err != nil {
			return s, err
		}
		stateBytes, rest, err = readLenPrefixed32(rest)
		if err != nil {
			return s, err
		}
		s.Properties[string(nameBytes)] = BackendState{Backend: string(backendBytes), Bytes: stateBytes}
	}
	return s, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func readU32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, ErrDecode
	}
	return binary.BigEndian.Uint32(b[:4]), b[4:], nil
}

func appendLenPrefixed32(buf []byte, data []byte) []byte {
	buf = appendU32(buf, uint32(len(data)))
	return append(buf, data...)
}

func readLenPrefixed32(b []byte) ([]byte, []byte, error) {
	n, rest, err := readU32(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < uint64(n) {
		return nil, nil, ErrDecode
	}
	return rest[:n], rest[n:], nil
}

func appendLenPrefixed16(buf []byte, data []byte) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(len(data)))
	buf = append(buf, tmp[:]...)
	return append(buf, data...)
}

func readLenPrefixed16(b []byte) ([]byte, []byte, error) {
	if len(b) < 2 {
		return nil, nil, ErrDecode
	}
	n := binary.BigEndian.Uint16(b[:2])
	rest := b[2:]
	if uint64(len(rest)) < uint64(n) {
		return nil, nil, ErrDecode
	}
	return rest[:n], rest[n:], nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
