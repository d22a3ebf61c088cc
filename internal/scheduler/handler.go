package scheduler

import (
	"go.uber.org/zap"

	"github.com/yourusername/streamcast/internal/carrier"
	"github.com/yourusername/streamcast/internal/client"
	"github.com/yourusername/streamcast/internal/protocol"
)

// handleEvent dispatches one carrier occurrence to the matching
// handler — spec.md §4.8's Client-Message Handler and §4.9's
// Open/Close Handlers.
func (s *Scheduler) handleEvent(ev carrier.Event) {
	switch ev.Kind {
	case carrier.EventOpen:
		s.handleOpen(ev)
	case carrier.EventClose:
		s.handleClose(ev)
	case carrier.EventMessage:
		s.handleMessage(ev)
	}
}

// handleOpen registers a new client and sends it ServerHello listing
// every configured channel, before any Init has been received.
func (s *Scheduler) handleOpen(ev carrier.Event) {
	cl := client.New(ev.ConnectionID, ev.SessionID)
	if err := s.registry.Insert(cl); err != nil {
		s.log.Error("register client", zap.Error(err))
		return
	}

	frame, err := protocol.EncodeServerHello(s.catalog.Names())
	if err != nil {
		s.log.Error("encode server hello", zap.Error(err))
		return
	}
	if _, err := s.carrier.QueueFrame(ev.ConnectionID, frame); err != nil {
		s.log.Warn("queue server hello", zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.ClientsConnected.Inc()
	}
}

// handleClose drops a client from the registry. Any segment it had in
// flight is simply discarded with it.
func (s *Scheduler) handleClose(ev carrier.Event) {
	if err := s.registry.Remove(ev.ConnectionID); err != nil {
		s.log.Debug("unregister client", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.ClientsConnected.Dec()
	}
}

// handleMessage parses and applies one inbound Init or Info message
// (spec.md §4.8). Malformed payloads and Init requests for an unknown
// channel are protocol errors: the connection is closed rather than
// the server guessing at intent.
func (s *Scheduler) handleMessage(ev carrier.Event) {
	cl, ok := s.registry.Lookup(ev.ConnectionID)
	if !ok {
		return
	}

	msg, err := protocol.ParseClientMessage(ev.Payload)
	if err != nil {
		s.log.Warn("bad client message", zap.Uint64("connection_id", ev.ConnectionID), zap.Error(err))
		s.carrier.Close(ev.ConnectionID)
		return
	}

	switch m := msg.(type) {
	case *protocol.Init:
		s.handleInit(cl, m)
	case *protocol.Info:
		s.handleInfo(cl, m)
	}
}

func (s *Scheduler) handleInit(cl *client.Client, m *protocol.Init) {
	ch, ok := s.catalog.Lookup(m.Channel)
	if !ok {
		s.log.Warn("init for unknown channel", zap.String("channel", m.Channel))
		s.carrier.Close(cl.ConnectionID)
		return
	}

	vts := ch.InitVTS()
	cl.Init(ch.Name(), vts, ch.FindATS(vts))

	frame, err := protocol.EncodeServerInit(protocol.ServerInit{
		Channel:   ch.Name(),
		VCodec:    ch.VCodec(),
		ACodec:    ch.ACodec(),
		Timescale: ch.Timescale(),
		InitVTS:   vts,
		InitID:    cl.InitID,
	})
	if err != nil {
		s.log.Error("encode server init", zap.Error(err))
		return
	}
	if _, err := s.carrier.QueueFrame(cl.ConnectionID, frame); err != nil {
		s.log.Warn("queue server init", zap.Error(err))
	}
}

// handleInfo applies client-reported telemetry, ignoring any report
// that predates the client's most recent Init — the stale-init_id case
// spec.md §4.8 and §8's scenario 6 both call out explicitly.
func (s *Scheduler) handleInfo(cl *client.Client, m *protocol.Info) {
	if m.InitID != cl.InitID {
		return
	}
	cl.VideoBufferLen = m.VideoBufferLen
	cl.AudioBufferLen = m.AudioBufferLen
	cl.ReportedNextVTS = m.NextVideoTS
	cl.ReportedNextATS = m.NextAudioTS
}
