// Package client holds the per-connection state the scheduler reads and
// mutates every tick (spec.md §4.2's Client type) plus the registry
// that indexes it by connection id. The package itself carries no
// scheduling logic — it is a plain, lock-free-by-convention data holder
// the single-threaded event loop owns exclusively.
package client

import (
	"github.com/yourusername/streamcast/internal/mediatype"
)

// Client is one subscriber's session state. Every field is owned by the
// scheduler's event-loop goroutine; nothing here is safe for concurrent
// access from another goroutine.
type Client struct {
	ConnectionID uint64

	// SessionID labels this session for logs/metrics independently of
	// the scheduler's literal connection id, which a carrier may reuse
	// across reconnects.
	SessionID string

	InitID  uint64
	Channel string // resolved channel name; empty until the first Init

	CurrVQ mediatype.VideoFormat
	CurrAQ mediatype.AudioFormat

	NextVTS uint64
	NextATS uint64

	NextVSegment *Segment
	NextASegment *Segment

	// VideoBufferLen / AudioBufferLen are the client-reported playback
	// buffer lengths in seconds, from the most recent Info message.
	VideoBufferLen float64
	AudioBufferLen float64

	// ReportedNextVTS / ReportedNextATS mirror the client's own view of
	// which timestamp it expects next, from the most recent Info
	// message; the scheduler compares these against NextVTS/NextATS to
	// bound how far the server has sent ahead of client progress.
	ReportedNextVTS uint64
	ReportedNextATS uint64

	// subscribed is false until a valid Init has been handled; the
	// scheduler skips unsubscribed clients entirely.
	subscribed bool
}

// New creates a Client in the not-yet-subscribed state.
func New(connectionID uint64, sessionID string) *Client {
	return &Client{ConnectionID: connectionID, SessionID: sessionID}
}

// Subscribed reports whether Init has been handled for this client.
func (c *Client) Subscribed() bool { return c.subscribed }

// Init resolves this client onto channel starting at vts/ats, bumping
// InitID so in-flight telemetry from the previous subscription is
// recognizable as stale (spec.md §4.8).
func (c *Client) Init(channel string, vts, ats uint64) {
	c.Channel = channel
	c.InitID++
	c.NextVTS = vts
	c.NextATS = ats
	c.ReportedNextVTS = vts
	c.ReportedNextATS = ats
	c.NextVSegment = nil
	c.NextASegment = nil
	c.CurrVQ = mediatype.VideoFormat{}
	c.CurrAQ = mediatype.AudioFormat{}
	c.subscribed = true
}

// VideoInFlightSeconds is how many seconds of video the server has sent
// ahead of what the client last reported needing — the quantity
// max_inflight_s bounds.
func (c *Client) VideoInFlightSeconds(timescale uint64) float64 {
	return tsDeltaSeconds(c.NextVTS, c.ReportedNextVTS, timescale)
}

// AudioInFlightSeconds is the audio analogue of VideoInFlightSeconds.
func (c *Client) AudioInFlightSeconds(timescale uint64) float64 {
	return tsDeltaSeconds(c.NextATS, c.ReportedNextATS, timescale)
}

func tsDeltaSeconds(next, reported, timescale uint64) float64 {
	if timescale == 0 || next <= reported {
		return 0
	}
	return float64(next-reported) / float64(timescale)
}
