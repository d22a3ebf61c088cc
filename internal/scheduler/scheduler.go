// Package scheduler implements the event loop, decision procedure and
// segment-emit logic spec.md §4.5–§4.9 describe: the only place in this
// program state is mutated from more than one call site, and therefore
// the only place that must stay single-threaded. Every other package
// either owns its own synchronization (carrier, catalog) or holds no
// mutable state at all.
package scheduler

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/streamcast/internal/carrier"
	"github.com/yourusername/streamcast/internal/catalog"
	"github.com/yourusername/streamcast/internal/client"
	"github.com/yourusername/streamcast/internal/metrics"
	"github.com/yourusername/streamcast/internal/protocol"
)

// Carrier is the subset of *carrier.Carrier the scheduler depends on.
// Declaring it here, rather than taking the concrete type, lets tests
// drive the decision procedure against a fake transport with no real
// sockets involved.
type Carrier interface {
	Events() <-chan carrier.Event
	QueueFrame(connectionID uint64, frame []byte) (bool, error)
	QueueSize(connectionID uint64) (int, bool)
	Close(connectionID uint64) error
}

// Config bundles everything the scheduler needs at construction time,
// mirroring spec.md §6's per-server configuration keys.
type Config struct {
	Logger  *zap.Logger
	Catalog *catalog.Catalog
	Carrier Carrier
	Metrics *metrics.Registry

	TickInterval  time.Duration // default 10ms, spec.md §4's Tick Source
	MaxBufferS    float64       // DEFAULT_MAX_BUFFER_S = 60
	MaxInFlightS  float64       // DEFAULT_MAX_INFLIGHT_S = 5
	MaxFrameBytes int           // DEFAULT_MAX_WS_FRAME_LEN = 100000
	MaxQueueBytes int           // DEFAULT_MAX_WS_QUEUE_LEN = 100000

	SelectVideo SelectVideoFunc // nil uses the default random selector
	SelectAudio SelectAudioFunc
}

// Scheduler is the single-threaded owner of every client's session
// state. Nothing outside the goroutine running Run may touch the
// Registry, the Clients it holds, or the per-client fields thereon.
type Scheduler struct {
	log     *zap.Logger
	catalog *catalog.Catalog
	carrier Carrier
	metrics *metrics.Registry

	tickInterval  time.Duration
	maxBufferS    float64
	maxInFlightS  float64
	maxFrameBytes int
	maxQueueBytes int

	selectVideo SelectVideoFunc
	selectAudio SelectAudioFunc

	registry *client.Registry
}

// New constructs a Scheduler. The returned value owns no goroutines
// until Run is called.
func New(cfg Config) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 10 * time.Millisecond
	}
	if cfg.MaxBufferS <= 0 {
		cfg.MaxBufferS = 60
	}
	if cfg.MaxInFlightS <= 0 {
		cfg.MaxInFlightS = 5
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = 100000
	}
	if cfg.MaxQueueBytes <= 0 {
		cfg.MaxQueueBytes = 100000
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	selectVideo := cfg.SelectVideo
	if selectVideo == nil {
		selectVideo = defaultSelectVideo(rng)
	}
	selectAudio := cfg.SelectAudio
	if selectAudio == nil {
		selectAudio = defaultSelectAudio(rng)
	}

	return &Scheduler{
		log:           cfg.Logger,
		catalog:       cfg.Catalog,
		carrier:       cfg.Carrier,
		metrics:       cfg.Metrics,
		tickInterval:  cfg.TickInterval,
		maxBufferS:    cfg.MaxBufferS,
		maxInFlightS:  cfg.MaxInFlightS,
		maxFrameBytes: cfg.MaxFrameBytes,
		maxQueueBytes: cfg.MaxQueueBytes,
		selectVideo:   selectVideo,
		selectAudio:   selectAudio,
		registry:      client.NewRegistry(),
	}
}

// Run drives the event loop until ctx is cancelled: one branch handles
// carrier occurrences (open/close/message) as they arrive, the other
// fires every tick and walks every registered client through the
// decision procedure. Both branches run on the calling goroutine —
// this is the cooperative, lock-free core spec.md §5 requires.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-s.carrier.Events():
			if !ok {
				return nil
			}
			s.handleEvent(ev)

		case <-ticker.C:
			s.registry.Each(s.decide)
		}
	}
}

// ClientCount returns the number of currently registered clients, for
// the admin surface's health check.
func (s *Scheduler) ClientCount() int { return s.registry.Len() }

// decide is the per-client, per-tick decision procedure (spec.md §4.5):
// apply the priority rule, then attempt to serve each stream in that
// order, rechecking backpressure immediately before every send.
func (s *Scheduler) decide(cl *client.Client) {
	if !cl.Subscribed() {
		return
	}
	ch, ok := s.catalog.Lookup(cl.Channel)
	if !ok {
		return
	}

	if cl.NextVTS > cl.NextATS {
		if s.canSendAudio(cl, ch) {
			s.sendAudioChunk(cl, ch)
		}
		if s.canSendVideo(cl, ch) {
			s.sendVideoChunk(cl, ch)
		}
		return
	}
	if s.canSendVideo(cl, ch) {
		s.sendVideoChunk(cl, ch)
	}
	if s.canSendAudio(cl, ch) {
		s.sendAudioChunk(cl, ch)
	}
}

func (s *Scheduler) canSendVideo(cl *client.Client, ch *catalog.Channel) bool {
	if cl.VideoBufferLen >= s.maxBufferS {
		return false
	}
	if cl.VideoInFlightSeconds(ch.Timescale()) >= s.maxInFlightS {
		return false
	}
	size, ok := s.carrier.QueueSize(cl.ConnectionID)
	return ok && size < s.maxQueueBytes
}

func (s *Scheduler) canSendAudio(cl *client.Client, ch *catalog.Channel) bool {
	if cl.AudioBufferLen >= s.maxBufferS {
		return false
	}
	if cl.AudioInFlightSeconds(ch.Timescale()) >= s.maxInFlightS {
		return false
	}
	size, ok := s.carrier.QueueSize(cl.ConnectionID)
	return ok && size < s.maxQueueBytes
}

// sendVideoChunk runs the segment-emit procedure (spec.md §4.6) for the
// video stream: start a new segment if none is in flight, then push one
// wire-frame-sized chunk of it.
func (s *Scheduler) sendVideoChunk(cl *client.Client, ch *catalog.Channel) bool {
	if cl.NextVSegment == nil {
		ts := cl.NextVTS
		if !ch.VReady(ts) {
			return false
		}
		q := s.selectVideo(ch, cl)
		payload, err := ch.VData(q, ts)
		if err != nil {
			s.log.Warn("video segment data unavailable", zap.Uint64("ts", ts), zap.Error(err))
			return false
		}
		var initBytes []byte
		if !q.Equal(cl.CurrVQ) {
			initBytes, err = ch.VInit(q)
			if err != nil {
				s.log.Warn("video init segment unavailable", zap.Error(err))
			}
		}
		cl.CurrVQ = q
		cl.NextVSegment = client.NewSegment(initBytes, payload)
	}

	seg := cl.NextVSegment
	headerLen := protocol.HeaderLen(cl.CurrVQ.String())
	budget := s.maxFrameBytes - headerLen
	if budget <= 0 {
		return false
	}
	chunkLen := min(seg.Remaining(), budget)

	size, ok := s.carrier.QueueSize(cl.ConnectionID)
	if !ok || size+headerLen+chunkLen > s.maxQueueBytes {
		return false
	}

	offset := seg.Offset()
	chunk := seg.Take(chunkLen)
	frame, _, err := protocol.EncodeMediaChunk(protocol.KindVideo, protocol.MediaChunk{
		Format:   cl.CurrVQ.String(),
		TS:       cl.NextVTS,
		Duration: ch.VDuration(),
		Offset:   uint64(offset),
		Length:   uint64(seg.Len()),
		Payload:  chunk,
	})
	if err != nil {
		s.log.Error("encode video chunk", zap.Error(err))
		return false
	}
	queued, err := s.carrier.QueueFrame(cl.ConnectionID, frame)
	if err != nil {
		s.log.Warn("queue video frame", zap.Error(err))
	}
	if !queued {
		if s.metrics != nil {
			s.metrics.FramesDropped.Inc()
		}
		return false
	}

	if s.metrics != nil {
		s.metrics.VideoBytesSent.Add(float64(len(chunk)))
	}
	if seg.Done() {
		cl.NextVTS += ch.VDuration()
		cl.NextVSegment = nil
	}
	return true
}

// sendAudioChunk is the audio analogue of sendVideoChunk.
func (s *Scheduler) sendAudioChunk(cl *client.Client, ch *catalog.Channel) bool {
	if cl.NextASegment == nil {
		ts := cl.NextATS
		ready := ch.AFormatsReady(ts)
		if len(ready) == 0 {
			return false
		}
		q := s.selectAudio(ch, cl, ready)
		payload, err := ch.AData(q, ts)
		if err != nil {
			s.log.Warn("audio segment data unavailable", zap.Uint64("ts", ts), zap.Error(err))
			return false
		}
		var initBytes []byte
		if !q.Equal(cl.CurrAQ) {
			initBytes, err = ch.AInit(q)
			if err != nil {
				s.log.Warn("audio init segment unavailable", zap.Error(err))
			}
		}
		cl.CurrAQ = q
		cl.NextASegment = client.NewSegment(initBytes, payload)
	}

	seg := cl.NextASegment
	headerLen := protocol.HeaderLen(cl.CurrAQ.String())
	budget := s.maxFrameBytes - headerLen
	if budget <= 0 {
		return false
	}
	chunkLen := min(seg.Remaining(), budget)

	size, ok := s.carrier.QueueSize(cl.ConnectionID)
	if !ok || size+headerLen+chunkLen > s.maxQueueBytes {
		return false
	}

	offset := seg.Offset()
	chunk := seg.Take(chunkLen)
	frame, _, err := protocol.EncodeMediaChunk(protocol.KindAudio, protocol.MediaChunk{
		Format:   cl.CurrAQ.String(),
		TS:       cl.NextATS,
		Duration: ch.ADuration(),
		Offset:   uint64(offset),
		Length:   uint64(seg.Len()),
		Payload:  chunk,
	})
	if err != nil {
		s.log.Error("encode audio chunk", zap.Error(err))
		return false
	}
	queued, err := s.carrier.QueueFrame(cl.ConnectionID, frame)
	if err != nil {
		s.log.Warn("queue audio frame", zap.Error(err))
	}
	if !queued {
		if s.metrics != nil {
			s.metrics.FramesDropped.Inc()
		}
		return false
	}

	if s.metrics != nil {
		s.metrics.AudioBytesSent.Add(float64(len(chunk)))
	}
	if seg.Done() {
		cl.NextATS += ch.ADuration()
		cl.NextASegment = nil
	}
	return true
}
