package scheduler

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/streamcast/internal/carrier"
	"github.com/yourusername/streamcast/internal/catalog"
	"github.com/yourusername/streamcast/internal/client"
	"github.com/yourusername/streamcast/internal/protocol"
)

// fakeCarrier is an in-memory stand-in for *carrier.Carrier: it records
// every frame queued per connection and lets tests cap the simulated
// queue depth to exercise backpressure (spec.md §8 scenario 4).
type fakeCarrier struct {
	mu        sync.Mutex
	events    chan carrier.Event
	queued    map[uint64][][]byte
	queueCap  int // 0 means unlimited
	queueSize map[uint64]int
	closed    map[uint64]bool
}

func newFakeCarrier() *fakeCarrier {
	return &fakeCarrier{
		events:    make(chan carrier.Event, 64),
		queued:    make(map[uint64][][]byte),
		queueSize: make(map[uint64]int),
		closed:    make(map[uint64]bool),
	}
}

func (f *fakeCarrier) Events() <-chan carrier.Event { return f.events }

func (f *fakeCarrier) QueueFrame(connectionID uint64, frame []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queueCap > 0 && f.queueSize[connectionID]+len(frame) > f.queueCap {
		return false, nil
	}
	f.queued[connectionID] = append(f.queued[connectionID], frame)
	f.queueSize[connectionID] += len(frame)
	return true, nil
}

func (f *fakeCarrier) QueueSize(connectionID uint64) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queueSize[connectionID], true
}

func (f *fakeCarrier) Close(connectionID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed[connectionID] = true
	return nil
}

func (f *fakeCarrier) frames(connectionID uint64) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.queued[connectionID]...)
}

func (f *fakeCarrier) drainFrame(connectionID uint64, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queueSize[connectionID] -= n
	if f.queueSize[connectionID] < 0 {
		f.queueSize[connectionID] = 0
	}
}

func writeTestSegment(t *testing.T, dir string, ts uint64, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	name := strconv.FormatUint(ts, 10) + ".m4s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644))
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	root := t.TempDir()
	cfg := catalog.Config{
		VideoDir:  filepath.Join(root, "video"),
		AudioDir:  filepath.Join(root, "audio"),
		VFormats:  []string{"1080p"},
		AFormats:  []string{"high"},
		VDuration: 180000,
		ADuration: 90000,
		Timescale: 90000,
		VCodec:    "avc1",
		ACodec:    "mp4a",
	}
	writeTestSegment(t, filepath.Join(cfg.VideoDir, "1080p"), 0, 250000)
	writeTestSegment(t, filepath.Join(cfg.AudioDir, "high"), 0, 50000)

	cat, err := catalog.Load([]string{"ch1"}, map[string]catalog.Config{"ch1": cfg}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func newTestScheduler(t *testing.T, car *fakeCarrier, maxFrameBytes, maxQueueBytes int) *Scheduler {
	t.Helper()
	cat := newTestCatalog(t)
	return New(Config{
		Logger:        zap.NewNop(),
		Catalog:       cat,
		Carrier:       car,
		MaxBufferS:    60,
		MaxInFlightS:  5,
		MaxFrameBytes: maxFrameBytes,
		MaxQueueBytes: maxQueueBytes,
	})
}

func subscribedClient(s *Scheduler, connID uint64) *client.Client {
	cl := client.New(connID, "s")
	s.registry.Insert(cl)
	ch, _ := s.catalog.Lookup("")
	cl.Init(ch.Name(), ch.InitVTS(), ch.FindATS(ch.InitVTS()))
	return cl
}

func TestScheduler_ChunksLargeSegmentAcrossFrames(t *testing.T) {
	car := newFakeCarrier()
	s := newTestScheduler(t, car, 100000, 1000000)
	cl := subscribedClient(s, 1)
	ch := mustChannel(t, s)

	for i := 0; i < 10; i++ {
		if !s.canSendVideo(cl, ch) || !s.sendVideoChunk(cl, ch) {
			break
		}
		if cl.NextVSegment == nil {
			break
		}
	}

	frames := car.frames(1)
	require.Len(t, frames, 3, "a 250000-byte segment over a 100000-byte frame cap must split into 3 frames")
	for _, f := range frames {
		assert.LessOrEqual(t, len(f), 100000)
		assert.Equal(t, byte(protocol.KindVideo), f[0])
	}
}

func TestScheduler_PriorityFlipServesLaggingStreamFirst(t *testing.T) {
	car := newFakeCarrier()
	s := newTestScheduler(t, car, 100000, 1000000)
	cl := subscribedClient(s, 1)

	// Audio target behind video target: audio must be attempted first.
	cl.NextVTS = 180000
	cl.NextATS = 0

	s.decide(cl)

	frames := car.frames(1)
	require.NotEmpty(t, frames)
	assert.Equal(t, byte(protocol.KindAudio), frames[0][0])
}

func TestScheduler_BackpressureStopsSendsAtQueueCap(t *testing.T) {
	car := newFakeCarrier()
	car.queueCap = 10 // far smaller than any real frame
	s := newTestScheduler(t, car, 100000, 1000000)
	cl := subscribedClient(s, 1)
	ch, _ := s.catalog.Lookup("")

	sent := s.sendVideoChunk(cl, ch)
	assert.False(t, sent, "a frame larger than the simulated queue cap must not be queued")
	assert.Empty(t, car.frames(1))
}

func TestScheduler_StaleInfoIsDropped(t *testing.T) {
	car := newFakeCarrier()
	s := newTestScheduler(t, car, 100000, 1000000)
	cl := subscribedClient(s, 1)

	cl.VideoBufferLen = 1
	s.handleInfo(cl, &protocol.Info{InitID: cl.InitID - 1, VideoBufferLen: 99})
	assert.Equal(t, 1.0, cl.VideoBufferLen, "an Info carrying a stale init_id must be ignored")

	s.handleInfo(cl, &protocol.Info{InitID: cl.InitID, VideoBufferLen: 42})
	assert.Equal(t, 42.0, cl.VideoBufferLen)
}

func TestScheduler_HandleInitUnknownChannelClosesConnection(t *testing.T) {
	car := newFakeCarrier()
	s := newTestScheduler(t, car, 100000, 1000000)
	cl := client.New(1, "s")
	s.registry.Insert(cl)

	s.handleInit(cl, &protocol.Init{Channel: "does-not-exist"})
	assert.True(t, car.closed[1])
}

func mustChannel(t *testing.T, s *Scheduler) *catalog.Channel {
	t.Helper()
	ch, ok := s.catalog.Lookup("")
	require.True(t, ok)
	return ch
}
