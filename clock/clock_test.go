// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package clock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankurah/ankurah-sub003/id"
)

func TestEmptyClock(t *testing.T) {
	require := require.New(t)

	c := Empty()
	require.True(c.IsEmpty())
	require.Equal(0, c.Len())
	_, ok := c.SoleMember()
	require.False(ok)
}

func TestSoleMember(t *testing.T) {
	require := require.New(t)

	a := id.EventId{0x01}
	c := Of(a)
	got, ok := c.SoleMember()
	require.True(ok)
	require.Equal(a, got)

	c2 := Of(a, id.EventId{0x02})
	_, ok = c2.SoleMember()
	require.False(ok)
}

func TestUnionWithWithout(t *testing.T) {
	require := require.New(t)

	a, b, c := id.EventId{0x01}, id.EventId{0x02}, id.EventId{0x03}

	clock1 := Of(a, b)
	clock2 := Of(b, c)

	union := clock1.Union(clock2)
	require.True(union.Equal(Of(a, b, c)))

	withoutB := union.Without(b)
	require.True(withoutB.Equal(Of(a, c)))

	withD := withoutB.With(id.EventId{0x04})
	require.Equal(3, withD.Len())
}

func TestListIsSorted(t *testing.T) {
	require := require.New(t)

	a, b, c := id.EventId{0x03}, id.EventId{0x01}, id.EventId{0x02}
	clock := Of(a, b, c)
	list := clock.List()
	require.True(list[0].Less(list[1]))
	require.True(list[1].Less(list[2]))
}
