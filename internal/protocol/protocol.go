// Package protocol implements the binary wire format spec.md §4.4
// describes: a small fixed-layout header (kind, format, timestamps,
// offset/length) immediately followed by payload bytes, all inside one
// non-fragmented carrier frame. Binary over JSON keeps header parsing
// allocation-free on the scheduler's hot path, matching the teacher's
// own preference for framed binary media over text protocols.
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Kind identifies which message a frame carries.
type Kind byte

const (
	KindServerHello Kind = 1
	KindServerInit  Kind = 2
	KindVideo       Kind = 3
	KindAudio       Kind = 4
	KindInit        Kind = 16
	KindInfo        Kind = 17
)

// ErrBadMessage is returned by ParseClientMessage for any inbound
// payload it cannot parse — spec.md §7's "Protocol errors from a client"
// class. An Init naming an unknown channel parses without error; the
// scheduler rejects it when resolving the channel.
var ErrBadMessage = errors.New("protocol: bad client message")

// Init is the inbound subscribe request. Channel is empty when the
// client didn't request one ("pick the first catalog entry").
type Init struct {
	Channel string
}

// Info is the inbound periodic client telemetry report.
type Info struct {
	InitID          uint64
	VideoBufferLen  float64
	AudioBufferLen  float64
	NextVideoTS     uint64
	NextAudioTS     uint64
}

// ServerHello is sent once, right after open.
type ServerHello struct {
	Channels []string
}

// ServerInit is sent in reply to a valid Init.
type ServerInit struct {
	Channel   string
	VCodec    string
	ACodec    string
	Timescale uint64
	InitVTS   uint64
	InitID    uint64
}

// MediaChunk is the shared shape of one Video or one Audio frame: a
// chunk of a segment's (init ∥ payload) byte stream.
type MediaChunk struct {
	Format   string
	TS       uint64
	Duration uint64
	Offset   uint64
	Length   uint64
	Payload  []byte
}

func putString(buf *bytes.Buffer, s string) error {
	if len(s) > 255 {
		return fmt.Errorf("protocol: string too long (%d bytes)", len(s))
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func getString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", ErrBadMessage
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", ErrBadMessage
	}
	return string(buf), nil
}

// EncodeServerHello builds the ServerHello frame payload.
func EncodeServerHello(channels []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(KindServerHello))
	if len(channels) > math.MaxUint16 {
		return nil, fmt.Errorf("protocol: too many channels")
	}
	binary.Write(&buf, binary.BigEndian, uint16(len(channels)))
	for _, name := range channels {
		if err := putString(&buf, name); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// EncodeServerInit builds the ServerInit frame payload.
func EncodeServerInit(msg ServerInit) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(KindServerInit))
	if err := putString(&buf, msg.Channel); err != nil {
		return nil, err
	}
	if err := putString(&buf, msg.VCodec); err != nil {
		return nil, err
	}
	if err := putString(&buf, msg.ACodec); err != nil {
		return nil, err
	}
	binary.Write(&buf, binary.BigEndian, msg.Timescale)
	binary.Write(&buf, binary.BigEndian, msg.InitVTS)
	binary.Write(&buf, binary.BigEndian, msg.InitID)
	return buf.Bytes(), nil
}

// EncodeMediaChunk builds a Video or Audio frame payload: the header
// followed by chunk.Payload. headerLen reports the header's byte size
// so callers can budget the remaining frame capacity before slicing a
// segment's payload (spec.md §4.6 step 2).
func EncodeMediaChunk(kind Kind, chunk MediaChunk) (frame []byte, headerLen int, err error) {
	if kind != KindVideo && kind != KindAudio {
		return nil, 0, fmt.Errorf("protocol: EncodeMediaChunk: kind %d is not media", kind)
	}
	var buf bytes.Buffer
	buf.WriteByte(byte(kind))
	if err := putString(&buf, chunk.Format); err != nil {
		return nil, 0, err
	}
	binary.Write(&buf, binary.BigEndian, chunk.TS)
	binary.Write(&buf, binary.BigEndian, chunk.Duration)
	binary.Write(&buf, binary.BigEndian, chunk.Offset)
	binary.Write(&buf, binary.BigEndian, chunk.Length)
	headerLen = buf.Len()
	buf.Write(chunk.Payload)
	return buf.Bytes(), headerLen, nil
}

// HeaderLen returns the encoded header size for a media chunk with the
// given format name, without allocating a payload — used by the
// scheduler to size the remaining per-frame budget before it reads from
// the segment.
func HeaderLen(format string) int {
	return 1 /*kind*/ + 1 /*len*/ + len(format) + 8*4
}

// EncodeInit builds the outbound-direction encoding of an Init message,
// used only by tests that need to round-trip a client request.
func EncodeInit(msg Init) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(KindInit))
	if msg.Channel == "" {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		putString(&buf, msg.Channel)
	}
	return buf.Bytes()
}

// EncodeInfo builds the outbound-direction encoding of an Info message,
// used only by tests.
func EncodeInfo(msg Info) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(KindInfo))
	binary.Write(&buf, binary.BigEndian, msg.InitID)
	binary.Write(&buf, binary.BigEndian, math.Float64bits(msg.VideoBufferLen))
	binary.Write(&buf, binary.BigEndian, math.Float64bits(msg.AudioBufferLen))
	binary.Write(&buf, binary.BigEndian, msg.NextVideoTS)
	binary.Write(&buf, binary.BigEndian, msg.NextAudioTS)
	return buf.Bytes()
}

// ParseClientMessage demultiplexes an inbound payload into *Init or
// *Info, per spec.md §4.4's two inbound kinds.
func ParseClientMessage(payload []byte) (any, error) {
	if len(payload) < 1 {
		return nil, ErrBadMessage
	}
	r := bytes.NewReader(payload[1:])
	switch Kind(payload[0]) {
	case KindInit:
		hasChannel, err := r.ReadByte()
		if err != nil {
			return nil, ErrBadMessage
		}
		if hasChannel == 0 {
			return &Init{}, nil
		}
		name, err := getString(r)
		if err != nil {
			return nil, ErrBadMessage
		}
		return &Init{Channel: name}, nil

	case KindInfo:
		var initID uint64
		var vbufBits, abufBits uint64
		var nextVTS, nextATS uint64
		for _, target := range []*uint64{&initID, &vbufBits, &abufBits, &nextVTS, &nextATS} {
			if err := binary.Read(r, binary.BigEndian, target); err != nil {
				return nil, ErrBadMessage
			}
		}
		return &Info{
			InitID:         initID,
			VideoBufferLen: math.Float64frombits(vbufBits),
			AudioBufferLen: math.Float64frombits(abufBits),
			NextVideoTS:    nextVTS,
			NextAudioTS:    nextATS,
		}, nil

	default:
		return nil, ErrBadMessage
	}
}
