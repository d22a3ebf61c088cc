// Package catalog implements the Channel Catalog: a read-mostly mapping
// from channel name to ordered video/audio timelines backed by
// memory-mapped segment files, kept current by filesystem-change
// notifications. The scheduler only ever calls the accessor methods on
// Channel; it never touches the filesystem or the watcher directly.
package catalog

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/yourusername/streamcast/internal/mediatype"
)

// Config is the per-channel sub-document named by spec.md §6's
// configuration table ("each channel name" key).
type Config struct {
	VideoDir  string   `yaml:"video_dir"`
	AudioDir  string   `yaml:"audio_dir"`
	VFormats  []string `yaml:"vformats"`
	AFormats  []string `yaml:"aformats"`
	VDuration uint64   `yaml:"vduration"`
	ADuration uint64   `yaml:"aduration"`
	Timescale uint64   `yaml:"timescale"`
	VCodec    string   `yaml:"vcodec"`
	ACodec    string   `yaml:"acodec"`
}

func (c Config) Validate(name string) error {
	if c.VideoDir == "" || c.AudioDir == "" {
		return fmt.Errorf("channel %q: video_dir and audio_dir are required", name)
	}
	if len(c.VFormats) == 0 || len(c.AFormats) == 0 {
		return fmt.Errorf("channel %q: vformats and aformats must be non-empty", name)
	}
	if c.VDuration == 0 || c.ADuration == 0 || c.Timescale == 0 {
		return fmt.Errorf("channel %q: vduration, aduration and timescale must be positive", name)
	}
	return nil
}

// Channel is the catalog's view of one named stream: ordered quality
// ladders for video and audio, each backed by a variantStore, plus the
// live-edge timestamp advanced as new segments are discovered.
type Channel struct {
	name      string
	timescale uint64
	vduration uint64
	aduration uint64
	vformats  []mediatype.VideoFormat
	aformats  []mediatype.AudioFormat
	vcodec    string
	acodec    string

	video map[mediatype.VideoFormat]*variantStore
	audio map[mediatype.AudioFormat]*variantStore

	// liveEdge is the highest video timestamp currently ready for every
	// quality variant. Advanced only forward, read without locking.
	liveEdge atomic.Uint64

	log *zap.Logger
}

// Name returns the channel's configured name.
func (c *Channel) Name() string { return c.name }

// Timescale returns ticks-per-second for timestamp arithmetic.
func (c *Channel) Timescale() uint64 { return c.timescale }

// VDuration returns the video segment length in timescale units.
func (c *Channel) VDuration() uint64 { return c.vduration }

// ADuration returns the audio segment length in timescale units.
func (c *Channel) ADuration() uint64 { return c.aduration }

// VFormats returns the ordered list of video quality variants.
func (c *Channel) VFormats() []mediatype.VideoFormat { return c.vformats }

// AFormats returns the ordered list of audio quality variants.
func (c *Channel) AFormats() []mediatype.AudioFormat { return c.aformats }

// VCodec returns the codec string reported in ServerInit.
func (c *Channel) VCodec() string { return c.vcodec }

// ACodec returns the codec string reported in ServerInit.
func (c *Channel) ACodec() string { return c.acodec }

// InitVTS returns the live-edge starting timestamp for new subscribers:
// the highest video timestamp ready for every configured quality.
func (c *Channel) InitVTS() uint64 { return c.liveEdge.Load() }

// FindATS returns the audio timestamp aligned to a given video
// timestamp: the start of the audio segment whose range contains vts.
func (c *Channel) FindATS(vts uint64) uint64 {
	if c.aduration == 0 {
		return 0
	}
	return (vts / c.aduration) * c.aduration
}

// VReady reports whether a video segment at ts is available for every
// configured quality variant.
func (c *Channel) VReady(ts uint64) bool {
	for _, f := range c.vformats {
		if !c.video[f].has(ts) {
			return false
		}
	}
	return true
}

// AReady reports whether an audio segment at ts is available for at
// least one configured quality variant.
func (c *Channel) AReady(ts uint64) bool {
	for _, f := range c.aformats {
		if c.audio[f].has(ts) {
			return true
		}
	}
	return false
}

// AFormatsReady returns the configured audio quality variants that
// currently have a segment at ts, in configuration order. The default
// quality selector picks among these rather than AFormats() directly,
// since AReady only guarantees at least one is present.
func (c *Channel) AFormatsReady(ts uint64) []mediatype.AudioFormat {
	ready := make([]mediatype.AudioFormat, 0, len(c.aformats))
	for _, f := range c.aformats {
		if c.audio[f].has(ts) {
			ready = append(ready, f)
		}
	}
	return ready
}

// VInit returns the init-segment bytes for a video quality variant.
func (c *Channel) VInit(q mediatype.VideoFormat) ([]byte, error) {
	store, ok := c.video[q]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown video format %s", q)
	}
	return store.init()
}

// AInit returns the init-segment bytes for an audio quality variant.
func (c *Channel) AInit(q mediatype.AudioFormat) ([]byte, error) {
	store, ok := c.audio[q]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown audio format %s", q)
	}
	return store.init()
}

// VData returns the segment payload bytes for a video quality at ts.
func (c *Channel) VData(q mediatype.VideoFormat, ts uint64) ([]byte, error) {
	store, ok := c.video[q]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown video format %s", q)
	}
	return store.data(ts)
}

// AData returns the segment payload bytes for an audio quality at ts.
func (c *Channel) AData(q mediatype.AudioFormat, ts uint64) ([]byte, error) {
	store, ok := c.audio[q]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown audio format %s", q)
	}
	return store.data(ts)
}

// onVideoSegmentAdded re-evaluates the live edge after the watcher
// registers a new video segment file. Called during Load's initial
// directory scan and afterwards only from the watcher goroutine;
// liveEdge itself is safe for concurrent reads via atomic.
func (c *Channel) onVideoSegmentAdded(ts uint64) {
	if ts < c.liveEdge.Load() {
		return
	}
	if c.VReady(ts) {
		for {
			cur := c.liveEdge.Load()
			if ts <= cur {
				return
			}
			if c.liveEdge.CompareAndSwap(cur, ts) {
				return
			}
		}
	}
}
