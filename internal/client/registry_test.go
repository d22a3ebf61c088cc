package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_InsertLookupRemove(t *testing.T) {
	r := NewRegistry()
	c := New(1, "session-1")

	require.NoError(t, r.Insert(c))
	assert.Equal(t, 1, r.Len())

	got, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Same(t, c, got)

	require.NoError(t, r.Remove(1))
	assert.Equal(t, 0, r.Len())

	_, ok = r.Lookup(1)
	assert.False(t, ok)
}

func TestRegistry_DuplicateInsertFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Insert(New(1, "a")))
	err := r.Insert(New(1, "b"))
	assert.Error(t, err)
}

func TestRegistry_RemoveMissingFails(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Remove(99))
}

func TestRegistry_EachPreservesInsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []uint64{3, 1, 2} {
		require.NoError(t, r.Insert(New(id, "")))
	}

	var seen []uint64
	r.Each(func(c *Client) { seen = append(seen, c.ConnectionID) })
	assert.Equal(t, []uint64{3, 1, 2}, seen)
}

func TestClient_InitBumpsInitIDAndResetsSegments(t *testing.T) {
	c := New(1, "")
	c.Init("news", 100, 50)
	assert.Equal(t, uint64(1), c.InitID)
	assert.True(t, c.Subscribed())
	assert.Equal(t, uint64(100), c.NextVTS)
	assert.Equal(t, uint64(50), c.NextATS)

	c.NextVSegment = NewSegment(nil, []byte("x"))
	c.Init("news", 200, 150)
	assert.Equal(t, uint64(2), c.InitID)
	assert.Nil(t, c.NextVSegment)
}

func TestClient_InFlightSeconds(t *testing.T) {
	c := New(1, "")
	c.NextVTS = 180000
	c.ReportedNextVTS = 90000
	assert.InDelta(t, 1.0, c.VideoInFlightSeconds(90000), 1e-9)

	c.NextVTS = 90000
	c.ReportedNextVTS = 90000
	assert.Equal(t, 0.0, c.VideoInFlightSeconds(90000))
}
