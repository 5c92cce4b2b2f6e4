package sgio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	require.True(t, OK().IsOK())
	s := Errorf("boom %d", 7)
	require.False(t, s.IsOK())
	assert.Contains(t, s.Error(), "boom 7")
	assert.Nil(t, FromError(nil).Unwrap())
}

func TestRangeIntersect(t *testing.T) {
	a := Range{Start: 0, End: 10}
	b := Range{Start: 5, End: 20}
	i := a.Intersect(b)
	assert.Equal(t, Range{Start: 5, End: 10}, i)
	assert.EqualValues(t, 5, i.Span())

	none := Range{Start: 0, End: 5}.Intersect(Range{Start: 5, End: 10})
	assert.EqualValues(t, 0, none.Span())
}

func TestRefcountReleasesExactlyOnce(t *testing.T) {
	freed := 0
	r := NewRefcount(1, func() { freed++ })
	r.Reserve()
	require.EqualValues(t, 2, r.Count())
	r.Release()
	assert.Equal(t, 0, freed)
	r.Release()
	assert.Equal(t, 1, freed)
}

func TestRefcountPanicsOnOverrelease(t *testing.T) {
	r := NewRefcount(1, func() {})
	r.Release()
	assert.Panics(t, func() { r.Release() })
}

func TestListCopyRoundTrip(t *testing.T) {
	l := NewList()
	l.Add(Buf{Data: make([]byte, 4)})
	l.Add(Buf{Data: make([]byte, 4)})

	n := CopyFrom(l, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.Equal(t, 8, n)

	dst := make([]byte, 8)
	n = CopyTo(dst, l)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, dst)
}

func TestCopyAtSkipsConsumedPrefix(t *testing.T) {
	l := NewList()
	l.Add(Buf{Data: []byte{1, 2, 3, 4}})
	l.Add(Buf{Data: []byte{5, 6, 7, 8}})

	dst := make([]byte, 4)
	n := CopyAt(dst, l, 4)
	require.Equal(t, 4, n)
	assert.Equal(t, []byte{5, 6, 7, 8}, dst)

	dst2 := make([]byte, 2)
	n = CopyAt(dst2, l, 6)
	require.Equal(t, 2, n)
	assert.Equal(t, []byte{7, 8}, dst2)
}
