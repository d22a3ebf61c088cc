package client

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_TakeAcrossInitAndPayloadBoundary(t *testing.T) {
	init := []byte("INIT")
	payload := []byte("PAYLOADBYTES")
	seg := NewSegment(init, payload)

	require.Equal(t, len(init)+len(payload), seg.Len())

	first := seg.Take(3)
	assert.Equal(t, []byte("INI"), first)
	assert.Equal(t, 3, seg.Offset())

	// Straddle the init/payload boundary.
	second := seg.Take(5)
	assert.Equal(t, []byte("TPAYL"), second)

	third := seg.Take(100)
	assert.Equal(t, []byte("OADBYTES"), third)
	assert.True(t, seg.Done())
	assert.Equal(t, 0, seg.Remaining())
}

func TestSegment_NoInit(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 10)
	seg := NewSegment(nil, payload)

	chunk := seg.Take(4)
	assert.Equal(t, payload[:4], chunk)
	assert.Equal(t, 4, seg.Offset())

	rest := seg.Take(100)
	assert.Equal(t, payload[4:], rest)
	assert.True(t, seg.Done())
}

func TestSegment_TakeZeroWhenDone(t *testing.T) {
	seg := NewSegment(nil, []byte("x"))
	seg.Take(1)
	assert.Nil(t, seg.Take(10))
}
