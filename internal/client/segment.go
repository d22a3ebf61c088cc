package client

// Segment tracks the cursor through one (init ∥ payload) byte stream as
// it is chunked across successive carrier frames (spec.md §4.6). Init
// bytes, when present, are sent ahead of the segment payload whenever
// the segment's quality differs from the previous segment's; a segment
// at the same quality as the one before it carries no init bytes.
type Segment struct {
	init    []byte
	payload []byte
	sent    int // bytes already consumed, counted over init+payload
}

// NewSegment starts a fresh cursor over init (may be nil) followed by
// payload.
func NewSegment(init, payload []byte) *Segment {
	return &Segment{init: init, payload: payload}
}

// Len is the total byte length of the segment's wire representation.
func (s *Segment) Len() int { return len(s.init) + len(s.payload) }

// Remaining is the number of bytes not yet consumed.
func (s *Segment) Remaining() int { return s.Len() - s.sent }

// Done reports whether every byte has been consumed.
func (s *Segment) Done() bool { return s.Remaining() == 0 }

// Offset is how many bytes have already been sent — the Offset field of
// the next chunk's header.
func (s *Segment) Offset() int { return s.sent }

// Take returns up to max bytes starting at the cursor and advances it.
// The returned slice is a freshly allocated copy; it does not alias the
// segment's init or payload storage.
func (s *Segment) Take(max int) []byte {
	if max <= 0 || s.Done() {
		return nil
	}
	n := s.Remaining()
	if n > max {
		n = max
	}
	chunk := make([]byte, n)
	copied := 0
	if s.sent < len(s.init) {
		k := copy(chunk, s.init[s.sent:])
		copied = k
	}
	if copied < n {
		payloadStart := s.sent + copied - len(s.init)
		if payloadStart < 0 {
			payloadStart = 0
		}
		copy(chunk[copied:], s.payload[payloadStart:])
	}
	s.sent += n
	return chunk
}
