// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package event

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/id"
)

func TestComputeIDIsReproducible(t *testing.T) {
	require := require.New(t)

	entityID := id.EntityId{0x01}
	collectionID := id.CollectionId("widgets")
	parent := clock.Of(id.EventId{0xAA})
	ops := []Operation{{Property: "title", Backend: "lww", Bytes: []byte("hello")}}

	e1 := New(entityID, collectionID, parent, ops)
	e2 := New(entityID, collectionID, parent, ops)

	require.Equal(e1.ID(), e2.ID())
}

func TestComputeIDDiffersOnAnyField(t *testing.T) {
	require := require.New(t)

	entityID := id.EntityId{0x01}
	collectionID := id.CollectionId("widgets")
	parent := clock.Of(id.EventId{0xAA})
	ops := []Operation{{Property: "title", Backend: "lww", Bytes: []byte("hello")}}

	base := New(entityID, collectionID, parent, ops)

	diffOps := New(entityID, collectionID, parent, []Operation{{Property: "title", Backend: "lww", Bytes: []byte("world")}})
	require.NotEqual(base.ID(), diffOps.ID())

	diffParent := New(entityID, collectionID, clock.Of(id.EventId{0xBB}), ops)
	require.NotEqual(base.ID(), diffParent.ID())

	diffEntity := New(id.EntityId{0x02}, collectionID, parent, ops)
	require.NotEqual(base.ID(), diffEntity.ID())
}

func TestCreateEventHasEmptyParent(t *testing.T) {
	require := require.New(t)

	e := New(id.EntityId{0x01}, id.CollectionId("c"), clock.Empty(), nil)
	require.True(e.IsCreate())
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	require := require.New(t)

	entityID := id.EntityId{0x01}
	collectionID := id.CollectionId("widgets")
	parent := clock.Of(id.EventId{0xAA}, id.EventId{0xBB})
	ops := []Operation{
		{Property: "title", Backend: "lww", Bytes: []byte("hello")},
		{Property: "body", Backend: "lww", Bytes: []byte("world")},
	}
	original := New(entityID, collectionID, parent, ops)

	wire := original.Serialize()
	decoded, err := Deserialize(wire)
	require.NoError(err)

	require.Equal(original.ID(), decoded.ID())
	require.Equal(original.EntityID, decoded.EntityID)
	require.True(original.CollectionID.Equal(decoded.CollectionID))
	require.True(original.Parent.Equal(decoded.Parent))
	require.Equal(original.Operations, decoded.Operations)
}

func TestDeserializeMalformedBytes(t *testing.T) {
	require := require.New(t)

	_, err := Deserialize([]byte{0x01, 0x02})
	require.ErrorIs(err, ErrDecode)
}

func TestDeserializeTruncatedOperations(t *testing.T) {
	require := require.New(t)

	e := New(id.EntityId{0x01}, id.CollectionId("c"), clock.Empty(), []Operation{{Backend: "x", Bytes: []byte("y")}})
	wire := e.Serialize()
	_, err := Deserialize(wire[:len(wire)-2])
	require.ErrorIs(err, ErrDecode)
}
