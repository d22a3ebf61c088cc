package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/yourusername/streamcast/internal/mediatype"
	"github.com/yourusername/streamcast/internal/mp4probe"
)

// Catalog is the read-only-to-the-scheduler mapping from channel name to
// Channel named by spec.md §4.1. It owns the fsnotify watcher that keeps
// every Channel's segment index current.
type Catalog struct {
	log      *zap.Logger
	mu       sync.RWMutex
	channels map[string]*Channel
	order    []string

	watcher *fsnotify.Watcher
	dirs    map[string]func(fsnotify.Event) // watched dir -> handler
	done    chan struct{}
}

// Load builds a Catalog from the ordered channel names and their
// per-channel configuration, memory-mapping every segment already on
// disk and registering filesystem watches for the ones still to come.
func Load(names []string, configs map[string]Config, log *zap.Logger) (*Catalog, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog: create watcher: %w", err)
	}

	cat := &Catalog{
		log:      log,
		channels: make(map[string]*Channel, len(names)),
		order:    append([]string(nil), names...),
		watcher:  watcher,
		dirs:     make(map[string]func(fsnotify.Event)),
		done:     make(chan struct{}),
	}

	for _, name := range names {
		cfg, ok := configs[name]
		if !ok {
			cat.Close()
			return nil, fmt.Errorf("catalog: channel %q has no configuration", name)
		}
		if err := cfg.Validate(name); err != nil {
			cat.Close()
			return nil, err
		}
		ch, err := cat.buildChannel(name, cfg)
		if err != nil {
			cat.Close()
			return nil, err
		}
		cat.channels[name] = ch
	}

	go cat.watchLoop()
	return cat, nil
}

// Names returns the configured channel names in catalog (configuration)
// order — the list sent in ServerHello. Lookup("") resolves an Init
// message's absent channel field to the first entry of this same order.
func (c *Catalog) Names() []string { return c.order }

// Lookup returns the Channel for name, defaulting to the first
// configured channel when name is empty (spec.md §4.4's Init contract).
func (c *Catalog) Lookup(name string) (*Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name == "" {
		if len(c.order) == 0 {
			return nil, false
		}
		ch, ok := c.channels[c.order[0]]
		return ch, ok
	}
	ch, ok := c.channels[name]
	return ch, ok
}

// Close stops the filesystem watcher. Safe to call once.
func (c *Catalog) Close() error {
	close(c.done)
	return c.watcher.Close()
}

func (c *Catalog) buildChannel(name string, cfg Config) (*Channel, error) {
	ch := &Channel{
		name:      name,
		timescale: cfg.Timescale,
		vduration: cfg.VDuration,
		aduration: cfg.ADuration,
		vcodec:    cfg.VCodec,
		acodec:    cfg.ACodec,
		video:     make(map[mediatype.VideoFormat]*variantStore, len(cfg.VFormats)),
		audio:     make(map[mediatype.AudioFormat]*variantStore, len(cfg.AFormats)),
		log:       c.log.With(zap.String("channel", name)),
	}

	for _, name := range cfg.VFormats {
		f := mediatype.NewVideoFormat(name)
		ch.vformats = append(ch.vformats, f)
		ch.video[f] = newVariantStore(filepath.Join(cfg.VideoDir, name))
	}
	for _, f := range ch.vformats {
		dir := filepath.Join(cfg.VideoDir, f.String())
		store := ch.video[f]
		if err := c.scanAndWatch(dir, func(ts uint64, path string) {
			if err := store.register(ts, path); err != nil {
				ch.log.Warn("failed to register video segment", zap.Error(err))
				return
			}
			ch.onVideoSegmentAdded(ts)
		}); err != nil {
			return nil, err
		}
		c.probeInitOnce(dir, ch, true, f, mediatype.AudioFormat{})
	}

	for _, name := range cfg.AFormats {
		f := mediatype.NewAudioFormat(name)
		ch.aformats = append(ch.aformats, f)
		dir := filepath.Join(cfg.AudioDir, name)
		store := newVariantStore(dir)
		ch.audio[f] = store
		if err := c.scanAndWatch(dir, func(ts uint64, path string) {
			if err := store.register(ts, path); err != nil {
				ch.log.Warn("failed to register audio segment", zap.Error(err))
			}
		}); err != nil {
			return nil, err
		}
		c.probeInitOnce(dir, ch, false, mediatype.VideoFormat{}, f)
	}

	return ch, nil
}

// probeInitOnce uses the MPEG-4 box parser to recover codec metadata
// from an init segment, when present, purely to enrich logging. The
// probed values are not stored: the configured vcodec/acodec are always
// what the channel reports. Probing never blocks channel construction:
// any error is logged at debug level.
func (c *Catalog) probeInitOnce(dir string, ch *Channel, isVideo bool, vf mediatype.VideoFormat, af mediatype.AudioFormat) {
	path := filepath.Join(dir, initSegmentName)
	info, err := mp4probe.ProbeInit(path)
	if err != nil {
		ch.log.Debug("mp4 box probe skipped", zap.String("path", path), zap.Error(err))
		return
	}
	if isVideo {
		ch.log.Debug("probed video init segment",
			zap.String("format", vf.String()),
			zap.String("codec", info.Codec),
			zap.Uint32("timescale", info.Timescale))
	} else {
		ch.log.Debug("probed audio init segment",
			zap.String("format", af.String()),
			zap.String("codec", info.Codec),
			zap.Uint32("timescale", info.Timescale))
	}
}

// scanAndWatch registers existing segment files in dir and arranges for
// onSegment to be invoked for every subsequent fsnotify Create/Write
// event in that directory.
func (c *Catalog) scanAndWatch(dir string, onSegment func(ts uint64, path string)) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("catalog: create %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ts, ok := segmentTimestamp(e.Name()); ok {
			onSegment(ts, filepath.Join(dir, e.Name()))
		}
	}

	if err := c.watcher.Add(dir); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", dir, err)
	}
	c.mu.Lock()
	c.dirs[dir] = func(ev fsnotify.Event) {
		if ts, ok := segmentTimestamp(filepath.Base(ev.Name)); ok {
			onSegment(ts, ev.Name)
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *Catalog) watchLoop() {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			c.mu.RLock()
			handler, ok := c.dirs[filepath.Dir(ev.Name)]
			c.mu.RUnlock()
			if ok {
				handler(ev)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.Warn("catalog watcher error", zap.Error(err))
		}
	}
}
