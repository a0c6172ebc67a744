// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankurah/ankurah-sub003/clock"
	"github.com/ankurah/ankurah-sub003/event"
	"github.com/ankurah/ankurah-sub003/id"
)

func TestMemoryStageThenCommit(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	m := NewMemory(true)

	e := event.New(id.EntityId{0x01}, id.CollectionId("widgets"), clock.Empty(), nil)

	require.NoError(m.StageEvent(ctx, e))
	got, err := m.GetEvent(ctx, e.ID())
	require.NoError(err)
	require.Equal(e.ID(), got.ID())

	exists, err := m.EventExists(ctx, e.ID())
	require.NoError(err)
	require.False(exists, "staged but not committed events are not permanent")

	require.NoError(m.CommitEvent(ctx, event.Attested[*event.Event]{Value: e}))
	exists, err = m.EventExists(ctx, e.ID())
	require.NoError(err)
	require.True(exists)
}

func TestMemoryGetEventNotFound(t *testing.T) {
	require := require.New(t)
	m := NewMemory(true)
	_, err := m.GetEvent(context.Background(), id.EventId{0xFF})
	require.ErrorIs(err, ErrNotFound)
}

func TestSnapshotEncodeDecodeRoundTrip(t *testing.T) {
	require := require.New(t)

	snap := Snapshot{
		EntityID:     id.EntityId{0x01},
		CollectionID: id.CollectionId("widgets"),
		Head:         clock.Of(id.EventId{0xAA}, id.EventId{0xBB}),
		Properties: map[string]BackendState{
			"title": {Backend: "lww", Bytes: []byte("hello")},
			"count": {Backend: "counter", Bytes: []byte{0, 0, 0, 1}},
		},
	}

	decoded, err := DecodeSnapshot(snap.Encode())
	require.NoError(err)
	require.Equal(snap.EntityID, decoded.EntityID)
	require.True(snap.CollectionID.Equal(decoded.CollectionID))
	require.True(snap.Head.Equal(decoded.Head))
	require.Equal(snap.Properties, decoded.Properties)
}

func TestSnapshotDecodeMalformed(t *testing.T) {
	require := require.New(t)
	_, err := DecodeSnapshot([]byte{0x01})
	require.ErrorIs(err, ErrDecode)
}
