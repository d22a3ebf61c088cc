package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMessage_Init(t *testing.T) {
	frame := EncodeInit(Init{Channel: "news-1080p"})
	msg, err := ParseClientMessage(frame)
	require.NoError(t, err)
	init, ok := msg.(*Init)
	require.True(t, ok)
	assert.Equal(t, "news-1080p", init.Channel)
}

func TestParseClientMessage_InitWithoutChannel(t *testing.T) {
	frame := EncodeInit(Init{})
	msg, err := ParseClientMessage(frame)
	require.NoError(t, err)
	init, ok := msg.(*Init)
	require.True(t, ok)
	assert.Equal(t, "", init.Channel)
}

func TestParseClientMessage_Info(t *testing.T) {
	in := Info{
		InitID:         7,
		VideoBufferLen: 12.5,
		AudioBufferLen: 9.25,
		NextVideoTS:    8100000,
		NextAudioTS:    4000000,
	}
	frame := EncodeInfo(in)
	msg, err := ParseClientMessage(frame)
	require.NoError(t, err)
	out, ok := msg.(*Info)
	require.True(t, ok)
	assert.Equal(t, in, *out)
}

func TestParseClientMessage_BadMessage(t *testing.T) {
	_, err := ParseClientMessage(nil)
	assert.ErrorIs(t, err, ErrBadMessage)

	_, err = ParseClientMessage([]byte{0xFF})
	assert.ErrorIs(t, err, ErrBadMessage)

	_, err = ParseClientMessage([]byte{byte(KindInfo), 1, 2, 3})
	assert.ErrorIs(t, err, ErrBadMessage)
}

func TestEncodeServerHello(t *testing.T) {
	frame, err := EncodeServerHello([]string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, byte(KindServerHello), frame[0])
}

func TestEncodeServerInit(t *testing.T) {
	frame, err := EncodeServerInit(ServerInit{
		Channel:   "news-1080p",
		VCodec:    "avc1",
		ACodec:    "mp4a",
		Timescale: 90000,
		InitVTS:   8100000,
		InitID:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, byte(KindServerInit), frame[0])
}

func TestEncodeMediaChunk_HeaderLenMatchesActualHeader(t *testing.T) {
	chunk := MediaChunk{
		Format:   "1080p",
		TS:       8100000,
		Duration: 180000,
		Offset:   0,
		Length:   250000,
		Payload:  make([]byte, 100),
	}
	frame, headerLen, err := EncodeMediaChunk(KindVideo, chunk)
	require.NoError(t, err)
	assert.Equal(t, HeaderLen(chunk.Format), headerLen)
	assert.Equal(t, headerLen+len(chunk.Payload), len(frame))
}

func TestEncodeMediaChunk_RejectsNonMediaKind(t *testing.T) {
	_, _, err := EncodeMediaChunk(KindInit, MediaChunk{})
	assert.Error(t, err)
}
